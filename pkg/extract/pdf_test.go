package extract

import (
	"bytes"
	"compress/zlib"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildPDF lays out a one-page document with a valid xref table. streamDict is the extra
// dictionary text for the content stream (filter, decode params).
func buildPDF(t *testing.T, content []byte, streamDict, created string) []byte {
	t.Helper()
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
		fmt.Sprintf("<< /Length %d %s >>\nstream\n%s\nendstream", len(content), streamDict, content),
	}
	trailer := "/Size 6 /Root 1 0 R"
	if created != "" {
		objects = append(objects, fmt.Sprintf("<< /Producer (test) /CreationDate (D:%s+09'00') >>", created))
		trailer = "/Size 7 /Root 1 0 R /Info 6 0 R"
	}

	var doc bytes.Buffer
	doc.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = doc.Len()
		fmt.Fprintf(&doc, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := doc.Len()
	fmt.Fprintf(&doc, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&doc, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&doc, "trailer\n<< %s >>\nstartxref\n%d\n%%%%EOF\n", trailer, xref)
	return doc.Bytes()
}

func deflate(t *testing.T, data string) []byte {
	t.Helper()
	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	_, err := zw.Write([]byte(data))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return compressed.Bytes()
}

const sampleContent = "BT /F1 12 Tf 72 720 Td (Fish robot study) Tj T* <556e646572> Tj [(wat) -20 (er)] TJ ET"

func TestExtractReadsTextAndFiscalYear(t *testing.T) {
	doc := buildPDF(t, []byte(sampleContent), "", "20240315120000")

	res, err := NewPDFExtractor(0).Extract(bytes.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, 2023, res.PubYear)
	assert.Contains(t, res.Content, "Fish robot study")
	assert.Contains(t, res.Content, "Underwater")
}

func TestExtractHexStringText(t *testing.T) {
	doc := buildPDF(t, []byte("BT <48656c6c6f> Tj ET"), "", "20240601000000")

	res, err := NewPDFExtractor(0).Extract(bytes.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, "Hello", res.Content)
	assert.Equal(t, 2024, res.PubYear)
}

func TestExtractFlateStreamWithDecodeParms(t *testing.T) {
	cases := map[string]string{
		"nested dictionary":  "/Filter /FlateDecode /DecodeParms << /Columns 4 >>",
		"identity predictor": "/Filter /FlateDecode /DecodeParms << /Predictor 1 >>",
	}
	for name, dict := range cases {
		t.Run(name, func(t *testing.T) {
			doc := buildPDF(t, deflate(t, "BT /F1 12 Tf (fish robot) Tj ET"), dict, "20231001000000")

			res, err := NewPDFExtractor(0).Extract(bytes.NewReader(doc))
			require.NoError(t, err)
			assert.Equal(t, "fish robot", res.Content)
		})
	}
}

func TestExtractWithoutCreationDate(t *testing.T) {
	doc := buildPDF(t, []byte(sampleContent), "", "")

	res, err := NewPDFExtractor(0).Extract(bytes.NewReader(doc))
	require.True(t, errors.Is(err, ErrNoMetadata))
	require.NotNil(t, res)
	assert.Contains(t, res.Content, "Fish robot study")
	assert.Zero(t, res.PubYear)
}

func TestExtractRejectsNonPDF(t *testing.T) {
	_, err := NewPDFExtractor(0).Extract(bytes.NewReader([]byte("\x89PNG....")))
	assert.Error(t, err)

	_, err = NewPDFExtractor(0).Extract(bytes.NewReader([]byte("%PDF-1.4\nno cross reference here\n%%EOF\n")))
	assert.Error(t, err)
}

func TestFiscalYear(t *testing.T) {
	assert.Equal(t, 2023, FiscalYear(time.Date(2024, time.March, 31, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 2024, FiscalYear(time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 2024, FiscalYear(time.Date(2024, time.December, 1, 0, 0, 0, 0, time.UTC)))
}
