// Command knighttab regenerates pkg/gambit/knight_table_data.go, the
// embedded knight retreat lookup table.
package main

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/crowngambit/api/pkg/gambit"
)

const outPath = "pkg/gambit/knight_table_data.go"

func main() {
	blob, err := gambit.BuildKnightTableData()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build knight table")
	}

	b64 := base64.StdEncoding.EncodeToString(blob)
	var lines []string
	for i := 0; i < len(b64); i += 76 {
		end := i + 76
		if end > len(b64) {
			end = len(b64)
		}
		lines = append(lines, b64[i:end])
	}

	var sb strings.Builder
	sb.WriteString("// Code generated by cmd/knighttab. DO NOT EDIT.\n\n")
	sb.WriteString("package gambit\n\n")
	sb.WriteString("// knightTableB64 is the bit-packed, gzip-compressed knight retreat table.\n")
	sb.WriteString("// Regenerate with: go run ./cmd/knighttab\n")
	fmt.Fprintf(&sb, "const knightTableB64 = %q", lines[0])
	for _, l := range lines[1:] {
		fmt.Fprintf(&sb, " +\n\t%q", l)
	}
	sb.WriteString("\n")

	if err := os.WriteFile(outPath, []byte(sb.String()), 0644); err != nil {
		log.Fatal().Err(err).Msg("Failed to write table file")
	}
	log.Info().Int("compressedBytes", len(blob)).Str("path", outPath).Msg("Knight table regenerated")
}
