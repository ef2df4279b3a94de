package ocr

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	name string
	args []string
}

type fakeRunner struct {
	mu    sync.Mutex
	calls []call
	fn    func(name string, args []string) ([]byte, []byte, error)
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{name: name, args: append([]string(nil), args...)})
	f.mu.Unlock()
	return f.fn(name, args)
}

func (f *fakeRunner) names() []string {
	var out []string
	for _, c := range f.calls {
		out = append(out, c.name)
	}
	return out
}

func TestExtractBytesUsesTextLayer(t *testing.T) {
	var seenInput string
	r := &fakeRunner{fn: func(name string, args []string) ([]byte, []byte, error) {
		seenInput = args[len(args)-2]
		data, err := os.ReadFile(seenInput)
		require.NoError(t, err)
		assert.Equal(t, "%PDF-1.4", string(data))
		return []byte("A1  Intro\t3:12\r\nA2 Song   4:05\f\fB1 Other 5:00\f"), nil, nil
	}}
	e := NewExtractor(Config{MaxPages: 50}, nil, WithRunner(r))

	res, err := e.ExtractBytes(context.Background(), []byte("%PDF-1.4"), 5)
	require.NoError(t, err)

	assert.Equal(t, MethodPDFText, res.Method)
	assert.Equal(t, "pdf", res.SourceType)
	assert.Equal(t, 3, res.Pages)
	assert.Equal(t, "A1 Intro 3:12\nA2 Song 4:05\n\nB1 Other 5:00", res.Text)

	require.Len(t, r.calls, 1)
	assert.Equal(t, "pdftotext", r.calls[0].name)
	assert.Equal(t, []string{"-layout", "-enc", "UTF-8", "-eol", "unix", "-l", "5"}, r.calls[0].args[:7])
	assert.Equal(t, "-", r.calls[0].args[8])

	_, err = os.Stat(seenInput)
	assert.True(t, os.IsNotExist(err), "temp file removed")
}

func TestExtractFileDefaultsToConfiguredMaxPages(t *testing.T) {
	r := &fakeRunner{fn: func(string, []string) ([]byte, []byte, error) { return []byte("text"), nil, nil }}
	e := NewExtractor(Config{MaxPages: 7}, nil, WithRunner(r))

	_, err := e.ExtractFile(context.Background(), "/in/doc.pdf", 0)
	require.NoError(t, err)
	assert.Contains(t, strings.Join(r.calls[0].args, " "), "-l 7")
}

func TestExtractBytesPropagatesToolFailure(t *testing.T) {
	r := &fakeRunner{fn: func(string, []string) ([]byte, []byte, error) {
		return nil, []byte("Syntax Error: Couldn't find trailer dictionary"), errors.New("exit status 1")
	}}
	e := NewExtractor(Config{}, nil, WithRunner(r))

	res, err := e.ExtractBytes(context.Background(), []byte("garbage"), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pdftotext")
	assert.Equal(t, []string{"Syntax Error: Couldn't find trailer dictionary"}, res.Warnings)
}

func TestExtractBytesRejectsEmptyInput(t *testing.T) {
	r := &fakeRunner{fn: func(string, []string) ([]byte, []byte, error) { return nil, nil, nil }}
	_, err := NewExtractor(Config{}, nil, WithRunner(r)).ExtractBytes(context.Background(), nil, 1)
	assert.Error(t, err)
	assert.Empty(t, r.calls)
}

func ocrRunner(t *testing.T, pages int, text string) *fakeRunner {
	return &fakeRunner{fn: func(name string, args []string) ([]byte, []byte, error) {
		switch name {
		case "pdftotext":
			return []byte("  \f"), nil, nil
		case "pdftoppm":
			prefix := args[len(args)-1]
			for i := 1; i <= pages; i++ {
				require.NoError(t, os.WriteFile(prefix+"-"+string(rune('0'+i))+".png", []byte("png"), 0o644))
			}
			return nil, nil, nil
		case "tesseract":
			return []byte(text + " " + filepath.Base(args[0])), nil, nil
		}
		return nil, nil, errors.New("unexpected command " + name)
	}}
}

func TestExtractFallsBackToOCRForScans(t *testing.T) {
	r := ocrRunner(t, 2, "Side A tracklist")
	e := NewExtractor(Config{ExtractImages: true, MinTextLength: 10, Language: "de"}, nil, WithRunner(r))

	res, err := e.ExtractBytes(context.Background(), []byte("%PDF"), 3)
	require.NoError(t, err)

	assert.Equal(t, MethodPDFOCR, res.Method)
	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, "deu", res.Language)
	assert.Equal(t, "Side A tracklist page-1.png\n\nSide A tracklist page-2.png", res.Text)
	assert.Equal(t, []string{"pdftotext", "pdftoppm", "tesseract", "tesseract"}, r.names())
	assert.Equal(t, []string{"-l", "deu"}, r.calls[2].args[2:4])
}

func TestNoOCRWithoutExtractImages(t *testing.T) {
	r := ocrRunner(t, 1, "x")
	e := NewExtractor(Config{MinTextLength: 100}, nil, WithRunner(r))

	res, err := e.ExtractBytes(context.Background(), []byte("%PDF"), 1)
	require.NoError(t, err)
	assert.Equal(t, MethodPDFText, res.Method)
	assert.Empty(t, res.Text)
	assert.Equal(t, []string{"pdftotext"}, r.names())
}

func TestOCRFailureKeepsTextLayer(t *testing.T) {
	r := &fakeRunner{fn: func(name string, _ []string) ([]byte, []byte, error) {
		if name == "pdftotext" {
			return []byte("short"), nil, nil
		}
		return nil, []byte("boom"), errors.New("exit status 1")
	}}
	e := NewExtractor(Config{ExtractImages: true, MinTextLength: 100}, nil, WithRunner(r))

	res, err := e.ExtractBytes(context.Background(), []byte("%PDF"), 1)
	require.NoError(t, err)
	assert.Equal(t, "short", res.Text)
	assert.Equal(t, MethodPDFText, res.Method)
	assert.Contains(t, res.Warnings, "boom")
}

func TestTesseractLanguage(t *testing.T) {
	for in, want := range map[string]string{
		"":        "eng",
		"en":      "eng",
		"en-GB":   "eng",
		"de":      "deu",
		"fr":      "fra",
		"eng+deu": "eng+deu",
		"!!":      "eng",
	} {
		assert.Equal(t, want, TesseractLanguage(in), in)
	}
}

func TestNormalize(t *testing.T) {
	in := "A1\tTrack   One  \r\n-----\n\n\n\nA2 Track 02\f"
	assert.Equal(t, "A1 Track One\n\nA2 Track 02", Normalize(in))
	assert.Empty(t, Normalize(""))
}
