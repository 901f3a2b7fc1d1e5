package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTextPayload(t *testing.T) {
	t.Parallel()

	p, err := TextPayload("  hello  ")
	require.NoError(t, err)
	require.Equal(t, KindText, p.Kind())
	require.Equal(t, "hello", p.text)
	require.Empty(t, p.data)
}

func TestTextPayloadBlank(t *testing.T) {
	t.Parallel()

	_, err := TextPayload("   ")
	require.Equal(t, ErrEmptyMessage, err)
}

func TestFilePayload(t *testing.T) {
	t.Parallel()

	p, err := FilePayload(KindImage, "a.png", []byte{1, 2, 3})
	require.NoError(t, err)
	require.Equal(t, KindImage, p.Kind())
	require.Equal(t, "a.png", p.name)
	require.Equal(t, []byte{1, 2, 3}, p.data)
	require.Empty(t, p.text)
}

func TestFilePayloadRejectsTextKind(t *testing.T) {
	t.Parallel()

	_, err := FilePayload(KindText, "a.txt", []byte("hi"))
	require.Equal(t, ErrEmptyMessage, err)
}

func TestFilePayloadRejectsEmpty(t *testing.T) {
	t.Parallel()

	_, err := FilePayload(KindPDF, "a.pdf", nil)
	require.Equal(t, ErrEmptyMessage, err)

	_, err = FilePayload(KindPDF, "  ", []byte{1})
	require.Equal(t, ErrEmptyMessage, err)
}

func TestPrivatePairKeyUnordered(t *testing.T) {
	t.Parallel()

	require.Equal(t, "3:7", privatePairKey(7, 3))
	require.Equal(t, "3:7", privatePairKey(3, 7))
}
