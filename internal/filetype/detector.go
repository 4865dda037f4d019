package filetype

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/unicode/norm"
)

// Kind is an accepted upload type.
type Kind string

const (
	PDF     Kind = "pdf"
	DOCX    Kind = "docx"
	Unknown Kind = ""
)

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// NeedsConversion reports whether the kind must go through LibreOffice first.
func (k Kind) NeedsConversion() bool { return k == DOCX }

// FromName returns the kind implied by the file extension, or Unknown when
// the extension is not an accepted one.
func FromName(name string) Kind {
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return Unknown
	}
	switch Kind(strings.ToLower(name[i+1:])) {
	case PDF:
		return PDF
	case DOCX:
		return DOCX
	}
	return Unknown
}

// Detect sniffs the content using magic bytes, not the filename. A ZIP
// container is taken as DOCX only when the name says so. Content that is
// neither falls back to the kind of the name.
func Detect(name string, data []byte) Kind {
	mtype := mimetype.Detect(data)
	mimeType := mtype.String()
	byName := FromName(name)

	switch {
	case mtype.Is(mimePDF):
		return PDF
	case mtype.Is(mimeDOCX):
		return DOCX
	case mtype.Is("application/zip") && byName == DOCX:
		log.Debug().Str("original", mimeType).Msg("ZIP detected, trusting .docx extension")
		return DOCX
	}
	if byName != Unknown {
		log.Debug().Str("mime", mimeType).Str("name", name).Msg("content type not recognized, using extension")
	}
	return byName
}

var asciiStrip = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

var windowsDeviceNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true, "COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true, "LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// SecureFilename reduces a client supplied name to a safe ASCII file name:
// accents are decomposed and dropped, path separators become spaces,
// whitespace runs become underscores, anything outside [A-Za-z0-9_.-] is
// removed and leading or trailing dots and underscores are trimmed. The
// result may be empty.
func SecureFilename(name string) string {
	decomposed := norm.NFKD.String(name)
	var b strings.Builder
	for _, r := range decomposed {
		if r < 0x80 {
			b.WriteRune(r)
		}
	}
	s := b.String()
	s = strings.NewReplacer("/", " ", "\\", " ").Replace(s)
	s = strings.Join(strings.Fields(s), "_")
	s = asciiStrip.ReplaceAllString(s, "")
	s = strings.Trim(s, "._")

	base := strings.ToUpper(strings.TrimSuffix(s, filepath.Ext(s)))
	if windowsDeviceNames[base] {
		s = "_" + s
	}
	return s
}

// DisplayName is SecureFilename falling back to "upload.<kind>" when
// sanitizing lost the name or its extension.
func DisplayName(name string, kind Kind) string {
	s := SecureFilename(name)
	if s == "" || FromName(s) != kind {
		return "upload." + string(kind)
	}
	return s
}
