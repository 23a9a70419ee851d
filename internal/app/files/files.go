// Package files stores project attachments in object storage and links them
// to their project rows.
package files

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
)

// Store is an object storage bucket. Put overwrites an existing key.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	PublicURL(key string) string
}

// Field names an attachment slot on a project.
type Field string

const (
	QuoteFile   Field = "quote_file"
	InvoiceFile Field = "invoice_file"
)

// Fields lists every attachment slot.
var Fields = []Field{QuoteFile, InvoiceFile}

// ParseField validates a slot name.
func ParseField(s string) (Field, bool) {
	for _, f := range Fields {
		if string(f) == s {
			return f, true
		}
	}
	return "", false
}

// URLColumn is the project column holding the public URL.
func (f Field) URLColumn() string { return string(f) + "_url" }

// NameColumn is the project column holding the display name.
func (f Field) NameColumn() string { return string(f) + "_name" }

// Attachment is an uploaded file held in memory until it is stored.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// Ref is where an attachment ended up.
type Ref struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

// Key returns the object key of an attachment:
// public/<project id>/<field>_url-<base name>.
func Key(projectID int64, field Field, name string) string {
	return fmt.Sprintf("public/%d/%s-%s", projectID, field.URLColumn(), BaseName(name))
}

// BaseName strips any client supplied directory from name.
func BaseName(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	base := path.Base(name)
	if base == "." || base == "/" {
		return "file"
	}
	return base
}
