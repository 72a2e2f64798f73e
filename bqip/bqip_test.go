package bqip

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteErrorEncodesProperly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteError(&buf, "oops"))
	require.Equal(t, "E|oops", buf.String())
}

// TestWriteResultEncodesProperly mirrors bqip.c's embedded TESTS literal
// expected output for a single field with three tuples.
func TestWriteResultEncodesProperly(t *testing.T) {
	var buf bytes.Buffer
	err := WriteResult(&buf, []FieldResult{
		{Name: "cpu", Tuples: []Tuple{
			{Start: 1, Value: 1.0},
			{Start: 2, Value: 2.0},
			{Start: 3, Value: 3.0},
		}},
	})
	require.NoError(t, err)
	require.Equal(t, "R|cpu=1:1.000000e+00,2:2.000000e+00,3:3.000000e+00,", buf.String())
}

func TestReadRequestParsesQueryFrame(t *testing.T) {
	payload := "SELECT cpu FROM host=localhost"
	frame := "Q|30|" + payload
	r := bufio.NewReader(bytes.NewBufferString(frame))

	req, err := ReadRequest(r)
	require.NoError(t, err)
	require.Equal(t, Query, req.Type)
	require.Equal(t, payload, req.Payload)
}

func TestReadRequestRejectsUnknownType(t *testing.T) {
	r := bufio.NewReader(bytes.NewBufferString("X||\n"))
	_, err := ReadRequest(r)
	require.Error(t, err)
}

func TestReadRequestRejectsNonDigitLength(t *testing.T) {
	r := bufio.NewReader(bytes.NewBufferString("Q|3x|abc"))
	_, err := ReadRequest(r)
	require.Error(t, err)
}
