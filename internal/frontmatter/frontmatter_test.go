package frontmatter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSplit_NoFrontmatter_ReturnsBodyOnly(t *testing.T) {
	input := []byte("# Title\n\nHello\n")

	doc, err := Split(input)
	require.NoError(t, err)
	require.Nil(t, doc.Meta)
	require.Equal(t, input, doc.Body)
}

func TestSplit_YAMLFrontmatter(t *testing.T) {
	doc, err := Split([]byte("---\ntitle: x\n---\n# Title\n"))
	require.NoError(t, err)
	require.Equal(t, []byte("title: x\n"), doc.Meta)
	require.Equal(t, []byte("# Title\n"), doc.Body)
}

func TestSplit_EmptyFrontmatter(t *testing.T) {
	doc, err := Split([]byte("---\n---\nbody"))
	require.NoError(t, err)
	require.Empty(t, doc.Meta)
	require.NotNil(t, doc.Meta)
	require.Equal(t, []byte("body"), doc.Body)
}

func TestSplit_CRLF(t *testing.T) {
	doc, err := Split([]byte("---\r\ntitle: x\r\n---\r\nbody\r\n"))
	require.NoError(t, err)
	require.Equal(t, "\r\n", doc.Newline)
	require.Equal(t, []byte("title: x\r\n"), doc.Meta)
	require.Equal(t, []byte("body\r\n"), doc.Body)
}

func TestSplit_MissingClosingDelimiter(t *testing.T) {
	_, err := Split([]byte("---\nkey: value\n# Title\n"))
	require.ErrorIs(t, err, ErrMissingClosingDelimiter)
}

func TestDecode(t *testing.T) {
	var meta struct {
		Title   string    `yaml:"title"`
		Tags    []string  `yaml:"tags"`
		Updated time.Time `yaml:"updated"`
	}
	body, err := Decode([]byte("---\ntitle: Hello\ntags: [a, b]\nupdated: 2024-05-01T10:00:00Z\n---\ntext\n"), &meta)
	require.NoError(t, err)
	require.Equal(t, "Hello", meta.Title)
	require.Equal(t, []string{"a", "b"}, meta.Tags)
	require.Equal(t, 2024, meta.Updated.Year())
	require.Equal(t, []byte("text\n"), body)

	_, err = Decode([]byte("---\ntitle: [unclosed\n---\n"), &meta)
	require.Error(t, err)
}

func TestCompose_RoundTrip(t *testing.T) {
	out, err := Compose(map[string]any{"title": "Hi", "tags": []string{"x"}}, []byte("body\n"))
	require.NoError(t, err)
	require.Equal(t, "---\ntags:\n  - x\ntitle: Hi\n---\nbody\n", string(out))

	var meta map[string]any
	body, err := Decode(out, &meta)
	require.NoError(t, err)
	require.Equal(t, "Hi", meta["title"])
	require.Equal(t, []byte("body\n"), body)

	out, err = Compose(nil, []byte("plain"))
	require.NoError(t, err)
	require.Equal(t, []byte("plain"), out)
}
