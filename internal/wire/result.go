package wire

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/ardaicoz/jn-cuclark/internal/job"
)

// resultSeparator is the reserved field separator for NodeResult records.
// Hostnames and paths cannot contain it (rejected at config validation);
// the error message is the final field, so separators inside captured
// command output do not desynchronize parsing.
const resultSeparator = "|"

const resultFields = 6

// EncodeResult renders a NodeResult as a single separator-delimited record:
// hostname|success|resultFile|abundanceFile|elapsedSeconds|errorMessage.
func EncodeResult(r *job.NodeResult) []byte {
	fields := []string{
		r.Hostname,
		encodeBool(r.Success),
		r.ResultFile,
		r.AbundanceFile,
		strconv.FormatFloat(r.ElapsedSeconds, 'f', 3, 64),
		r.ErrorMessage,
	}
	return []byte(strings.Join(fields, resultSeparator))
}

// DecodeResult parses a record produced by EncodeResult. Empty numeric
// fields decode as zero.
func DecodeResult(payload []byte) (*job.NodeResult, error) {
	fields := strings.SplitN(string(payload), resultSeparator, resultFields)
	if len(fields) < resultFields {
		return nil, errors.Errorf("malformed result record: %d of %d fields", len(fields), resultFields)
	}

	elapsed := 0.0
	if fields[4] != "" {
		v, err := strconv.ParseFloat(fields[4], 64)
		if err != nil {
			return nil, errors.Errorf("malformed elapsed field %q", fields[4])
		}
		elapsed = v
	}

	return &job.NodeResult{
		Hostname:       fields[0],
		Success:        fields[1] == "1",
		ResultFile:     fields[2],
		AbundanceFile:  fields[3],
		ElapsedSeconds: elapsed,
		ErrorMessage:   fields[5],
	}, nil
}
