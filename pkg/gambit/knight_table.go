package gambit

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
	"sync"
)

// The knight retreat table maps every (origin, failedCapture) pair that is
// a legal knight move to the retreat candidates inside the two squares'
// minimal bounding rectangle, with the cost in knight hops back from the
// origin. It is generated by cmd/knighttab, bit-packed, gzipped and
// embedded as knightTableB64; the runtime decodes it once, lazily, and
// shares the decoded map read-only across all matches.
//
// Packed entry layout (uint16). The fields occupy non-overlapping bit
// ranges — an earlier implementation of this table shipped with
// overlapping fields, so the layout is locked down here and round-trip
// tested:
//
//	bits 0-2  file offset from the rectangle's minimum file (0..7)
//	bits 3-5  rank offset from the rectangle's minimum rank (0..7)
//	bits 6-8  retreat cost in knight hops (0..7)
const (
	tableFileShift = 0
	tableRankShift = 3
	tableCostShift = 6
	tableFieldMask = 0x7
)

func packRetreatEntry(df, dr, cost int) (uint16, error) {
	if df < 0 || df > tableFieldMask || dr < 0 || dr > tableFieldMask || cost < 0 || cost > tableFieldMask {
		return 0, fmt.Errorf("retreat entry out of range: df=%d dr=%d cost=%d", df, dr, cost)
	}
	return uint16(df)<<tableFileShift | uint16(dr)<<tableRankShift | uint16(cost)<<tableCostShift, nil
}

func unpackRetreatEntry(e uint16) (df, dr, cost int) {
	return int(e>>tableFileShift) & tableFieldMask,
		int(e>>tableRankShift) & tableFieldMask,
		int(e>>tableCostShift) & tableFieldMask
}

// pairKey packs an (origin, failedCapture) pair into the table key.
func pairKey(origin, failed Square) uint16 {
	return uint16(origin)<<6 | uint16(failed)
}

func pairFromKey(key uint16) (origin, failed Square) {
	return Square(key >> 6), Square(key & 0x3f)
}

// BuildKnightTableData computes the full table and returns it in the
// serialized, gzip-compressed wire form. Used by cmd/knighttab to emit
// the embedded blob, and by tests to cross-check the embedded copy.
func BuildKnightTableData() ([]byte, error) {
	type record struct {
		key     uint16
		entries []uint16
	}
	var records []record

	for o := Square(0); o < 64; o++ {
		dists := knightDistances(o)
		for _, j := range knightJumps {
			t := step(o, j)
			if !t.Valid() {
				continue
			}
			minF, maxF := o.File(), t.File()
			if minF > maxF {
				minF, maxF = maxF, minF
			}
			minR, maxR := o.Rank(), t.Rank()
			if minR > maxR {
				minR, maxR = maxR, minR
			}
			var entries []uint16
			for f := minF; f <= maxF; f++ {
				for r := minR; r <= maxR; r++ {
					sq := Sq(f, r)
					if sq == t {
						continue
					}
					e, err := packRetreatEntry(f-minF, r-minR, int(dists[sq]))
					if err != nil {
						return nil, err
					}
					entries = append(entries, e)
				}
			}
			sort.Slice(entries, func(a, b int) bool { return entries[a] < entries[b] })
			records = append(records, record{key: pairKey(o, t), entries: entries})
		}
	}
	sort.Slice(records, func(a, b int) bool { return records[a].key < records[b].key })

	var raw bytes.Buffer
	for _, rec := range records {
		var hdr [3]byte
		binary.BigEndian.PutUint16(hdr[:2], rec.key)
		hdr[2] = byte(len(rec.entries))
		raw.Write(hdr[:])
		for _, e := range rec.entries {
			var buf [2]byte
			binary.BigEndian.PutUint16(buf[:], e)
			raw.Write(buf[:])
		}
	}

	var out bytes.Buffer
	zw := gzip.NewWriter(&out)
	if _, err := zw.Write(raw.Bytes()); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// knightDistances returns the minimum number of knight hops from the
// origin to every square, by breadth-first search over the knight graph.
func knightDistances(origin Square) [64]int8 {
	var dist [64]int8
	for i := range dist {
		dist[i] = -1
	}
	dist[origin] = 0
	queue := []Square{origin}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, j := range knightJumps {
			next := step(cur, j)
			if next.Valid() && dist[next] < 0 {
				dist[next] = dist[cur] + 1
				queue = append(queue, next)
			}
		}
	}
	return dist
}

// decodeKnightTableData parses the wire form into the runtime lookup map.
func decodeKnightTableData(data []byte) (map[uint16][]RetreatOption, error) {
	m := make(map[uint16][]RetreatOption)
	for i := 0; i < len(data); {
		if len(data)-i < 3 {
			return nil, fmt.Errorf("truncated table record at offset %d", i)
		}
		key := binary.BigEndian.Uint16(data[i : i+2])
		count := int(data[i+2])
		i += 3
		if len(data)-i < 2*count {
			return nil, fmt.Errorf("truncated table entries for key %d", key)
		}
		origin, failed := pairFromKey(key)
		minF, minR := origin.File(), origin.Rank()
		if f := failed.File(); f < minF {
			minF = f
		}
		if r := failed.Rank(); r < minR {
			minR = r
		}
		opts := make([]RetreatOption, 0, count)
		for n := 0; n < count; n++ {
			df, dr, cost := unpackRetreatEntry(binary.BigEndian.Uint16(data[i : i+2]))
			i += 2
			opts = append(opts, RetreatOption{Square: Sq(minF+df, minR+dr), Cost: cost})
		}
		sort.Slice(opts, func(a, b int) bool { return opts[a].Square < opts[b].Square })
		m[key] = opts
	}
	return m, nil
}

var knightTable struct {
	once sync.Once
	m    map[uint16][]RetreatOption
	err  error
}

// loadKnightTable decompresses and decodes the embedded blob exactly once.
func loadKnightTable() (map[uint16][]RetreatOption, error) {
	knightTable.once.Do(func() {
		raw, err := base64.StdEncoding.DecodeString(knightTableB64)
		if err != nil {
			knightTable.err = fmt.Errorf("decode knight table: %w", err)
			return
		}
		zr, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			knightTable.err = fmt.Errorf("decompress knight table: %w", err)
			return
		}
		defer zr.Close()
		data, err := io.ReadAll(zr)
		if err != nil {
			knightTable.err = fmt.Errorf("decompress knight table: %w", err)
			return
		}
		knightTable.m, knightTable.err = decodeKnightTableData(data)
	})
	return knightTable.m, knightTable.err
}

// KnightRetreats returns the retreat options for a knight that failed a
// capture from origin against failed. The result always contains the
// origin at cost 0 and never contains the failed-capture square; pairs
// outside the table (not a knight move) yield only the origin.
func KnightRetreats(origin, failed Square) ([]RetreatOption, error) {
	originOnly := []RetreatOption{{Square: origin, Cost: 0}}
	if !origin.Valid() || !failed.Valid() {
		return originOnly, nil
	}
	m, err := loadKnightTable()
	if err != nil {
		return originOnly, err
	}
	opts, ok := m[pairKey(origin, failed)]
	if !ok {
		return originOnly, nil
	}
	return append([]RetreatOption(nil), opts...), nil
}
