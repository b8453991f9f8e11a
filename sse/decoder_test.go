package sse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecoder_MultiFrameLF(t *testing.T) {
	raw := "event: delta\ndata: hello\n\nevent: delta\ndata: world\n\n"
	d := NewDecoder(strings.NewReader(raw))

	require.True(t, d.Next())
	require.Equal(t, "delta", d.Current().Event)
	require.Equal(t, "hello", string(d.Current().Data))

	require.True(t, d.Next())
	require.Equal(t, "world", string(d.Current().Data))

	require.False(t, d.Next())
	require.NoError(t, d.Error())
}

func TestDecoder_CRLFLineEndings(t *testing.T) {
	raw := "event: delta\r\ndata: hi\r\n\r\n"
	d := NewDecoder(strings.NewReader(raw))

	require.True(t, d.Next())
	require.Equal(t, "hi", string(d.Current().Data))
}

func TestDecoder_LoneCRLineEndings(t *testing.T) {
	raw := "event: delta\rdata: hi\r\r"
	d := NewDecoder(strings.NewReader(raw))

	require.True(t, d.Next())
	require.Equal(t, "hi", string(d.Current().Data))
}

func TestDecoder_MultilineDataJoinedWithNewline(t *testing.T) {
	raw := "data: line one\ndata: line two\n\n"
	d := NewDecoder(strings.NewReader(raw))

	require.True(t, d.Next())
	require.Equal(t, "line one\nline two", string(d.Current().Data))
}

func TestDecoder_DefaultEventNameIsMessage(t *testing.T) {
	raw := "data: hi\n\n"
	d := NewDecoder(strings.NewReader(raw))

	require.True(t, d.Next())
	require.Equal(t, "message", d.Current().Event)
}

func TestDecoder_LeadingBOMStripped(t *testing.T) {
	raw := utf8BomSequence + "data: hi\n\n"
	d := NewDecoder(strings.NewReader(raw))

	require.True(t, d.Next())
	require.Equal(t, "hi", string(d.Current().Data))
}

func TestDecoder_InvalidEventNameStopsDecoding(t *testing.T) {
	raw := "event: not valid\ndata: hi\n\n"
	d := NewDecoder(strings.NewReader(raw))

	require.False(t, d.Next())
	require.Error(t, d.Error())
	require.ErrorIs(t, d.Error(), ErrInvalidEventName)
}

func TestDecoder_UnterminatedFinalFrameAtEOF(t *testing.T) {
	raw := "event: delta\ndata: trailing"
	d := NewDecoder(strings.NewReader(raw))

	require.True(t, d.Next())
	require.Equal(t, "trailing", string(d.Current().Data))
	require.False(t, d.Next())
	require.NoError(t, d.Error())
}

func TestDecoder_IDPersistsAcrossFrames(t *testing.T) {
	raw := "id: 1\ndata: a\n\ndata: b\n\n"
	d := NewDecoder(strings.NewReader(raw))

	require.True(t, d.Next())
	require.Equal(t, "1", d.Current().ID)

	require.True(t, d.Next())
	require.Equal(t, "1", d.Current().ID, "last-seen id carries forward to frames that don't repeat it")
}

func TestDecoder_CommentLinesIgnored(t *testing.T) {
	raw := ": this is a comment\ndata: hi\n\n"
	d := NewDecoder(strings.NewReader(raw))

	require.True(t, d.Next())
	require.Equal(t, "hi", string(d.Current().Data))
}

func TestDecoder_RetryFieldParsed(t *testing.T) {
	raw := "retry: 5000\ndata: hi\n\n"
	d := NewDecoder(strings.NewReader(raw))

	require.True(t, d.Next())
	require.Equal(t, 5000, d.Current().Retry)
}

func TestDecoder_EmptyStreamYieldsNoFrames(t *testing.T) {
	d := NewDecoder(strings.NewReader(""))
	require.False(t, d.Next())
	require.NoError(t, d.Error())
}
