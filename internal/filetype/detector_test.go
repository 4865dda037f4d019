package filetype

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromName(t *testing.T) {
	assert.Equal(t, PDF, FromName("Report.PDF"))
	assert.Equal(t, DOCX, FromName("a.b.docx"))
	assert.Equal(t, Unknown, FromName("notes.txt"))
	assert.Equal(t, Unknown, FromName("pdf"))
	assert.True(t, DOCX.NeedsConversion())
	assert.False(t, PDF.NeedsConversion())
}

func zipBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("hello.txt")
	require.NoError(t, err)
	_, _ = w.Write([]byte("hi"))
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestDetect(t *testing.T) {
	pdf := []byte("%PDF-1.7\n1 0 obj\n<<>>\nendobj\n")
	assert.Equal(t, PDF, Detect("renamed.docx", pdf))
	assert.Equal(t, DOCX, Detect("memo.docx", zipBytes(t)))
	assert.Equal(t, Unknown, Detect("archive.zip", zipBytes(t)))
	assert.Equal(t, PDF, Detect("broken.pdf", []byte("garbage")))
	assert.Equal(t, Unknown, Detect("notes.txt", []byte("plain text")))
}

func TestSecureFilename(t *testing.T) {
	cases := map[string]string{
		"My cool movie.mov":                "My_cool_movie.mov",
		"../../../etc/passwd":              "etc_passwd",
		"i contain cool \xfcml\xe4uts.txt": "i_contain_cool_mluts.txt",
		"résumé final.pdf":                 "resume_final.pdf",
		"  .hidden.pdf ":                   "hidden.pdf",
		"CON.pdf":                          "_CON.pdf",
		"отчёт.pdf":                        "pdf",
	}
	for in, want := range cases {
		assert.Equal(t, want, SecureFilename(in), in)
	}
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "report.pdf", DisplayName("report.pdf", PDF))
	assert.Equal(t, "upload.pdf", DisplayName("отчёт.pdf", PDF))
	assert.Equal(t, "upload.docx", DisplayName(".docx", DOCX))
}
