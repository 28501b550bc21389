package reader

import (
	"fmt"

	"github.com/tsawler/folio/core"
	"github.com/tsawler/folio/crypt"
	"github.com/tsawler/folio/pages"
)

// Info returns the document information dictionary, or nil when the
// trailer has none.
func (r *Reader) Info() (core.Dict, error) {
	info, ok, err := r.res.Dict(r.trailer.Get("Info"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve Info: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return info, nil
}

// InfoStrings returns the text entries of the information dictionary
// decoded to UTF-8 (Title, Author, Producer...).
func (r *Reader) InfoStrings() map[string]string {
	out := make(map[string]string)
	info, err := r.Info()
	if err != nil || info == nil {
		return out
	}
	for key, v := range info {
		resolved, err := r.Resolve(v)
		if err != nil {
			continue
		}
		switch s := resolved.(type) {
		case core.String:
			out[key] = s.Text()
		case core.Name:
			out[key] = string(s)
		}
	}
	return out
}

// Metadata returns the decoded XMP metadata stream of the catalog, or nil.
func (r *Reader) Metadata() ([]byte, error) {
	s, err := pages.NewCatalog(r.catalog, r).Metadata()
	if err != nil || s == nil {
		return nil, err
	}
	return s.Decode()
}

// IsEncrypted reports whether the document has an /Encrypt dictionary.
func (r *Reader) IsEncrypted() bool { return r.crypt != nil }

// Permissions returns the user access permissions. Unencrypted documents
// allow everything.
func (r *Reader) Permissions() crypt.Permissions {
	if r.crypt == nil {
		return crypt.PermAll
	}
	return r.crypt.Permissions()
}

// IsOpenedWithFullPermissions reports whether the document is unencrypted
// or was opened with the owner password.
func (r *Reader) IsOpenedWithFullPermissions() bool {
	return r.crypt == nil || r.crypt.OwnerAuthenticated()
}

// EncryptMetadata reports whether metadata streams are encrypted. It is
// false for unencrypted documents.
func (r *Reader) EncryptMetadata() bool {
	return r.crypt != nil && r.crypt.EncryptMetadata()
}
