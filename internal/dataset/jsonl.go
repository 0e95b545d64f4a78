package dataset

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/shopmind/recembed/internal/model"
)

// WriteJSONLines writes samples in the platform's channel format, one JSON
// object per line.
func WriteJSONLines(w io.Writer, pairs []model.PairSample) error {
	buffered := bufio.NewWriter(w)
	encoder := json.NewEncoder(buffered)
	for i, pair := range pairs {
		if err := encoder.Encode(pair); err != nil {
			return fmt.Errorf("encode sample %d: %w", i, err)
		}
	}
	return buffered.Flush()
}

// ReadJSONLines reads a channel file back into samples.
func ReadJSONLines(r io.Reader) ([]model.PairSample, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	var pairs []model.PairSample
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var pair model.PairSample
		if err := json.Unmarshal(scanner.Bytes(), &pair); err != nil {
			return nil, fmt.Errorf("decode sample line %d: %w", line, err)
		}
		pairs = append(pairs, pair)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read channel: %w", err)
	}
	return pairs, nil
}
