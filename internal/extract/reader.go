package extract

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/rbergman/daybook/internal/ledger"
)

// Batch is the ordered records of one day's extract, in file order with
// blank lines discarded.
type Batch []ledger.Record

// DecodeError reports an extract that could not be read into a batch. No
// partial batch is produced when it occurs.
type DecodeError struct {
	Line int // 1-based line number, 0 when unknown
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("decode extract line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("decode extract: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ReadBatch decodes one day's extract from r. Blank lines (including a
// tolerated trailing one) are dropped; the relative order of the surviving
// lines is preserved.
func ReadBatch(r io.Reader) (Batch, error) {
	var batch Batch

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), 1024*1024)

	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSuffix(sc.Bytes(), []byte("\r"))
		if len(raw) == 0 {
			continue
		}
		batch = append(batch, Decode(string(raw)))
	}
	if err := sc.Err(); err != nil {
		return nil, &DecodeError{Line: line + 1, Err: err}
	}
	return batch, nil
}

// ReadFile decodes the extract file at path.
func ReadFile(path string) (Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open extract: %w", err)
	}
	defer f.Close()
	return ReadBatch(f)
}
