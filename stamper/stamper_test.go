package stamper

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsawler/folio/core"
	"github.com/tsawler/folio/crypt"
	"github.com/tsawler/folio/internal/pdftest"
	"github.com/tsawler/folio/internal/pdftest/encrypted"
	"github.com/tsawler/folio/pages"
	"github.com/tsawler/folio/reader"
)

func pageText(i int) string {
	return fmt.Sprintf("BT /F1 12 Tf 72 720 Td (page %d) Tj ET", i)
}

func open(t *testing.T, data []byte, opts ...reader.Option) *reader.Reader {
	t.Helper()
	r, err := reader.NewFromBytes(data, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

// stamp runs edit on a stamper over r and returns the written bytes.
func stamp(t *testing.T, r *reader.Reader, edit func(s *Stamper), opts ...Option) []byte {
	t.Helper()
	var buf bytes.Buffer
	s, err := New(r, &buf, opts...)
	require.NoError(t, err)
	if edit != nil {
		edit(s)
	}
	require.NoError(t, s.Close())
	return buf.Bytes()
}

func contents(t *testing.T, r *reader.Reader) []string {
	t.Helper()
	var out []string
	for i := 1; i <= r.PageCount(); i++ {
		c, err := r.PageContent(i)
		require.NoError(t, err)
		out = append(out, string(c))
	}
	return out
}

func TestRoundTrip(t *testing.T) {
	for _, full := range []bool{false, true} {
		t.Run(fmt.Sprintf("compressed=%v", full), func(t *testing.T) {
			src := open(t, pdftest.Pages(3).Bytes())
			want := contents(t, src)

			var opts []Option
			if full {
				opts = append(opts, WithConfig(Config{FullCompression: true, ObjectsPerStream: 2}))
			}
			out := open(t, stamp(t, src, nil, opts...))

			assert.Equal(t, 3, out.PageCount())
			assert.Equal(t, want, contents(t, out))
			assert.False(t, out.Rebuilt())

			compressed := 0
			for _, num := range out.XRefTable().ObjectNumbers() {
				if e, _ := out.XRefTable().Get(num); e.Kind == core.EntryCompressed {
					compressed++
				}
			}
			if full {
				assert.Positive(t, compressed)
			} else {
				assert.Zero(t, compressed)
			}
		})
	}
}

func TestRoundTripOfObjectStreamSource(t *testing.T) {
	src := open(t, pdftest.Pages(2).BytesXRefStream(1, 2, 3, 5))
	out := open(t, stamp(t, src, nil))
	assert.Equal(t, []string{pageText(1), pageText(2)}, contents(t, out))
}

func TestContentUnderAndOver(t *testing.T) {
	src := open(t, pdftest.Pages(1).Bytes())
	data := stamp(t, src, func(s *Stamper) {
		under, err := s.ContentUnder(1)
		require.NoError(t, err)
		fmt.Fprint(under, "0 0 m")
		over, err := s.ContentOver(1)
		require.NoError(t, err)
		fmt.Fprint(over, "1 1 m")

		again, err := s.ContentOver(1)
		require.NoError(t, err)
		assert.Same(t, over, again)

		_, err = s.ContentOver(2)
		assert.Error(t, err)
	})

	out := open(t, data)
	want := "q\n0 0 m\nQ\nq\n" + "\n" + pageText(1) + "\n" + "\nQ\nq\n1 1 m\nQ\n"
	assert.Equal(t, []string{want}, contents(t, out))
}

func TestRotatedPageTransform(t *testing.T) {
	tests := []struct {
		rotate int
		cm     string
	}{
		{90, "0 1 -1 0 612 0 cm\n"},
		{180, "-1 0 0 -1 612 792 cm\n"},
		{270, "0 -1 1 0 0 792 cm\n"},
		{-90, "0 -1 1 0 0 792 cm\n"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.rotate), func(t *testing.T) {
			b := pdftest.New()
			b.Trailer = "/Root 1 0 R"
			b.Add(1, "<< /Type /Catalog /Pages 2 0 R >>")
			b.Add(2, fmt.Sprintf("<< /Type /Pages /Kids [3 0 R] /Count 1 /Rotate %d >>", tt.rotate))
			b.Add(3, "<< /Type /Page /Parent 2 0 R /Contents 4 0 R >>")
			b.AddStream(4, "<< >>", []byte("ORIG"))
			src := open(t, b.Bytes())

			out := open(t, stamp(t, src, func(s *Stamper) {
				over, err := s.ContentOver(1)
				require.NoError(t, err)
				fmt.Fprint(over, "OVER")
			}))
			c := contents(t, out)[0]
			assert.Contains(t, c, "q\n"+tt.cm+"\nQ\nq\n\nORIG")
			assert.Contains(t, c, "\nQ\nq\n"+tt.cm+"OVER\nQ\n")
		})
	}

	assert.Nil(t, rotation(0, pages.Letter))
}

func TestRotationWithOffsetMediaBox(t *testing.T) {
	box := pages.NewRectangle(50, 50, 662, 842)
	tests := []struct {
		rotate int
		cm     string
	}{
		{90, "0 1 -1 0 712 0 cm\n"},
		{180, "-1 0 0 -1 712 892 cm\n"},
		{270, "0 -1 1 0 0 892 cm\n"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.rotate), func(t *testing.T) {
			cm := rotation(tt.rotate, box)
			assert.Equal(t, tt.cm, string(cm))

			var a, b, c, d, e, f float64
			_, err := fmt.Sscanf(string(cm), "%g %g %g %g %g %g cm", &a, &b, &c, &d, &e, &f)
			require.NoError(t, err)

			visible := box
			if tt.rotate != 180 {
				visible = box.Rotate()
			}
			// both corners of the visible box land on corners of the media box
			for _, p := range [][2]float64{{visible.LLX, visible.LLY}, {visible.URX, visible.URY}} {
				x := a*p[0] + c*p[1] + e
				y := b*p[0] + d*p[1] + f
				assert.True(t, x == box.LLX || x == box.URX, "x = %g", x)
				assert.True(t, y == box.LLY || y == box.URY, "y = %g", y)
			}
		})
	}
}

func TestAddResourceNames(t *testing.T) {
	b := pdftest.New()
	b.Trailer = "/Root 1 0 R"
	b.Add(1, "<< /Type /Catalog /Pages 2 0 R >>")
	b.Add(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 /Resources 5 0 R >>")
	b.Add(3, "<< /Type /Page /Parent 2 0 R /Contents 4 0 R >>")
	b.AddStream(4, "<< >>", []byte(pageText(1)))
	b.Add(5, "<< /Font << /F1 6 0 R >> /ProcSet [/PDF /Text] >>")
	b.Add(6, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>")
	src := open(t, b.Bytes())

	font := core.Dict{"Type": core.Name("Font"), "Subtype": core.Name("Type1"), "BaseFont": core.Name("Courier")}
	var names []core.Name
	data := stamp(t, src, func(s *Stamper) {
		ref := s.AddObject(font)
		over, err := s.ContentOver(1)
		require.NoError(t, err)
		under, err := s.ContentUnder(1)
		require.NoError(t, err)
		for _, c := range []*PageContent{over, over, under} {
			name, err := c.AddResource("Font", ref)
			require.NoError(t, err)
			names = append(names, name)
		}
		name, err := over.AddResource("Custom", core.Int(1))
		require.NoError(t, err)
		names = append(names, name)
		_, err = over.AddResource("", core.Int(1))
		assert.Error(t, err)
	})
	assert.Equal(t, []core.Name{"F2", "F3", "F4", "R1"}, names)

	out := open(t, data)
	page, err := out.GetPage(1)
	require.NoError(t, err)
	res, err := page.Resources()
	require.NoError(t, err)
	fonts, ok, err := dictOf(out, res.Get("Font"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"F1", "F2", "F3", "F4"}, fonts.Keys())
	assert.True(t, res.Has("ProcSet"))

	courier, _, err := dictOf(out, fonts.Get("F3"))
	require.NoError(t, err)
	name, _ := courier.GetName("BaseFont")
	assert.Equal(t, core.Name("Courier"), name)
}

func dictOf(r *reader.Reader, obj core.Object) (core.Dict, bool, error) {
	resolved, err := r.Resolve(obj)
	if err != nil {
		return nil, false, err
	}
	d, ok := resolved.(core.Dict)
	return d, ok, nil
}

type producer struct {
	content   string
	resources core.Dict
}

func (p producer) Content() []byte      { return []byte(p.content) }
func (p producer) Resources() core.Dict { return p.resources }

func TestSplice(t *testing.T) {
	src := open(t, pdftest.Pages(1).Bytes())
	data := stamp(t, src, func(s *Stamper) {
		require.NoError(t, s.Splice(1, true, producer{content: "0 0 10 10 re f"}))
		require.NoError(t, s.Splice(1, false, producer{
			content:   "BT /F1 9 Tf (x) Tj ET",
			resources: core.Dict{"Font": core.Dict{}},
		}))
	})

	out := open(t, data)
	c := contents(t, out)[0]
	assert.True(t, bytes.Index([]byte(c), []byte("q /Xo1 Do Q")) < bytes.Index([]byte(c), []byte(pageText(1))))
	assert.True(t, bytes.Index([]byte(c), []byte(pageText(1))) < bytes.Index([]byte(c), []byte("q /Xo2 Do Q")))

	page, err := out.GetPage(1)
	require.NoError(t, err)
	res, err := page.Resources()
	require.NoError(t, err)
	xobjects, _, err := dictOf(out, res.Get("XObject"))
	require.NoError(t, err)
	resolved, err := out.Resolve(xobjects.Get("Xo2"))
	require.NoError(t, err)
	form, ok := resolved.(*core.Stream)
	require.True(t, ok)
	decoded, err := form.Decode()
	require.NoError(t, err)
	assert.Equal(t, "BT /F1 9 Tf (x) Tj ET", string(decoded))
	subtype, _ := form.Dict.GetName("Subtype")
	assert.Equal(t, core.Name("Form"), subtype)
	assert.True(t, form.Dict.Has("Resources"))
}

func TestTamperedReader(t *testing.T) {
	r := open(t, pdftest.Pages(1).Bytes())
	_, err := New(r, &bytes.Buffer{})
	require.NoError(t, err)
	_, err = New(r, &bytes.Buffer{})
	assert.ErrorIs(t, err, ErrTampered)
}

func TestConfigValidation(t *testing.T) {
	r := open(t, pdftest.Pages(1).Bytes())
	_, err := New(r, &bytes.Buffer{}, WithConfig(Config{ObjectsPerStream: 0}))
	assert.Error(t, err)
	_, err = New(r, &bytes.Buffer{}, WithConfig(Config{ObjectsPerStream: 10, MinVersion: "3.1"}))
	assert.Error(t, err)
	_, err = New(r, &bytes.Buffer{}, WithEncryption(crypt.Params{Revision: 2, KeyBits: 128}))
	assert.ErrorIs(t, err, crypt.ErrUnsupportedEncryption)
	assert.False(t, r.Tampered())
}

func TestCloseTwice(t *testing.T) {
	r := open(t, pdftest.Pages(1).Bytes())
	var buf bytes.Buffer
	s, err := New(r, &buf)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	n := buf.Len()
	require.NoError(t, s.Close())
	assert.Equal(t, n, buf.Len())

	_, err = s.ContentOver(1)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.SetFieldValue("x", "y"), ErrClosed)
}

var fileID = []byte("0123456789abcdef")

func encryptedSource(t *testing.T, p crypt.Params) []byte {
	t.Helper()
	h, err := crypt.New(p, fileID)
	require.NoError(t, err)
	data, err := encrypted.Document(h, pageText(1), "Secret report")
	require.NoError(t, err)
	return data
}

func TestEncryptedSource(t *testing.T) {
	params := []crypt.Params{
		{Revision: 2, KeyBits: 40},
		{Revision: 3, KeyBits: 128},
		{Revision: 4, KeyBits: 128, AES: true, EncryptMetadata: true},
		{Revision: 5, KeyBits: 256},
		{Revision: 6, KeyBits: 256},
	}
	for _, p := range params {
		p.UserPassword, p.OwnerPassword = "user", "owner"
		p.Permissions = crypt.PermPrint
		t.Run(fmt.Sprintf("R%d", p.Revision), func(t *testing.T) {
			data := encryptedSource(t, p)

			user := open(t, data, reader.WithPassword("user"))
			_, err := New(user, &bytes.Buffer{})
			assert.ErrorIs(t, err, crypt.ErrBadPassword)
			assert.False(t, user.Tampered())

			for _, full := range []bool{false, true} {
				owner := open(t, data, reader.WithPassword("owner"))
				var opts []Option
				if full {
					opts = append(opts, WithFullCompression())
				}
				out := stamp(t, owner, func(s *Stamper) {
					s.SetInfo(map[string]string{"Subject": "stamped"})
				}, opts...)
				assert.NotContains(t, string(out), "Secret report")

				reopened := open(t, out, reader.WithPassword("user"))
				assert.True(t, reopened.IsEncrypted())
				assert.False(t, reopened.IsOpenedWithFullPermissions())
				assert.Equal(t, p.Revision, reopened.Crypt().Revision())
				assert.Equal(t, []string{pageText(1)}, contents(t, reopened))
				info := reopened.InfoStrings()
				assert.Equal(t, "Secret report", info["Title"])
				assert.Equal(t, "stamped", info["Subject"])

				_, err = reader.NewFromBytes(out, reader.WithPassword("wrong"))
				assert.ErrorIs(t, err, crypt.ErrBadPassword)
			}
		})
	}
}

func TestWithEncryption(t *testing.T) {
	src := open(t, pdftest.Pages(2).Bytes())
	out := stamp(t, src, nil, WithEncryption(crypt.Params{
		Revision:      6,
		KeyBits:       256,
		UserPassword:  "user",
		OwnerPassword: "owner",
		Permissions:   crypt.PermPrint,
	}))
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-2.0\n")))
	assert.NotContains(t, string(out), "page 1")

	_, err := reader.NewFromBytes(out)
	assert.ErrorIs(t, err, crypt.ErrBadPassword)

	owner := open(t, out, reader.WithPassword("owner"))
	assert.True(t, owner.IsOpenedWithFullPermissions())
	assert.Equal(t, []string{pageText(1), pageText(2)}, contents(t, owner))
}

func TestOutputVersion(t *testing.T) {
	b := pdftest.Pages(1)
	b.Version = "1.3"
	cases := []struct {
		opts []Option
		want string
	}{
		{nil, "%PDF-1.3"},
		{[]Option{WithFullCompression()}, "%PDF-1.5"},
		{[]Option{WithConfig(Config{ObjectsPerStream: 5, MinVersion: "1.7"})}, "%PDF-1.7"},
		{[]Option{WithEncryption(crypt.Params{Revision: 4, KeyBits: 128, AES: true})}, "%PDF-1.6"},
	}
	for _, c := range cases {
		out := stamp(t, open(t, b.Bytes()), nil, c.opts...)
		assert.True(t, bytes.HasPrefix(out, []byte(c.want+"\n")), "want %s, got %.8s", c.want, out)
	}
}

func TestInfoAndOutlines(t *testing.T) {
	now = func() time.Time { return time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC) }
	t.Cleanup(func() { now = time.Now })

	b := pdftest.Pages(3)
	b.Trailer += " /Info 20 0 R"
	b.Add(20, "<< /Author (Jane) /Producer (old) >>")
	src := open(t, b.Bytes())

	data := stamp(t, src, func(s *Stamper) {
		s.SetInfo(map[string]string{"Title": "Résumé", "Author": ""})
		require.NoError(t, s.SetOutlines([]Bookmark{
			{Title: "Intro", Page: 1},
			{Title: "Body", Page: 2, Open: true, Children: []Bookmark{
				{Title: "Detail", Page: 3},
			}},
			{Title: "Closed", Page: 3, Children: []Bookmark{{Title: "Hidden", Page: 3}}},
		}))
		assert.Error(t, s.SetOutlines([]Bookmark{{Title: "Nowhere", Page: 9}}))
	})

	out := open(t, data)
	assert.Equal(t, map[string]string{
		"Title":    "Résumé",
		"Producer": "old",
		"ModDate":  "D:20260301093000Z",
	}, out.InfoStrings())

	mode, _ := out.Catalog().GetName("PageMode")
	assert.Equal(t, core.Name("UseOutlines"), mode)
	root, ok, err := dictOf(out, out.Catalog().Get("Outlines"))
	require.NoError(t, err)
	require.True(t, ok)
	count, _ := root.GetInt("Count")
	assert.Equal(t, core.Int(4), count)

	first, _, err := dictOf(out, root.Get("First"))
	require.NoError(t, err)
	title, _ := first.GetString("Title")
	assert.Equal(t, "Intro", title.Text())
	dest, _ := first.GetArray("Dest")
	page1, err := out.PageRef(1)
	require.NoError(t, err)
	assert.Equal(t, page1, dest[0])

	second, _, err := dictOf(out, first.Get("Next"))
	require.NoError(t, err)
	count, _ = second.GetInt("Count")
	assert.Equal(t, core.Int(1), count)
	last, _, err := dictOf(out, root.Get("Last"))
	require.NoError(t, err)
	count, _ = last.GetInt("Count")
	assert.Equal(t, core.Int(-1), count)
	assert.False(t, last.Has("Next"))
}

func TestRemoveOutlines(t *testing.T) {
	b := pdftest.PagesCatalog(1, "/Outlines 20 0 R /PageMode /UseOutlines")
	b.Add(20, "<< /Type /Outlines /Count 0 >>")
	out := open(t, stamp(t, open(t, b.Bytes()), func(s *Stamper) {
		require.NoError(t, s.SetOutlines(nil))
	}))
	assert.False(t, out.Catalog().Has("Outlines"))
	assert.False(t, out.Catalog().Has("PageMode"))
}

func TestPDFDate(t *testing.T) {
	zone := time.FixedZone("", -(5*3600 + 30*60))
	assert.Equal(t, "D:20260102030405-05'30'", pdfDate(time.Date(2026, 1, 2, 3, 4, 5, 0, zone)))
	assert.Equal(t, "D:20260102030405Z", pdfDate(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)))
}

func formSource() *pdftest.Builder {
	b := pdftest.PagesCatalog(1, "/AcroForm 20 0 R")
	b.Add(20, "<< /Fields [21 0 R 23 0 R] >>")
	b.Add(21, "<< /T (person) /Kids [22 0 R] >>")
	b.Add(22, "<< /FT /Tx /T (first) /Parent 21 0 R /Subtype /Widget /Rect [0 0 10 10] >>")
	b.Add(23, "<< /FT /Btn /T (agree) /Kids [24 0 R] >>")
	b.Add(24, "<< /Subtype /Widget /Parent 23 0 R /AP << /N << /Yes 25 0 R /Off 26 0 R >> >> /AS /Off >>")
	b.AddStream(25, "<< /Subtype /Form /BBox [0 0 10 10] >>", []byte("0 g"))
	b.AddStream(26, "<< /Subtype /Form /BBox [0 0 10 10] >>", []byte("1 g"))
	return b
}

func TestFormFields(t *testing.T) {
	src := open(t, formSource().Bytes())
	data := stamp(t, src, func(s *Stamper) {
		require.NoError(t, s.SetFieldValue("person.first", "Zoë"))
		require.NoError(t, s.SetFieldValue("agree", "Yes"))
		assert.ErrorIs(t, s.SetFieldValue("person.last", "x"), ErrFieldNotFound)
		assert.ErrorIs(t, s.SetFieldValue("first", "x"), ErrFieldNotFound)

		_, err := s.AddAnnotation(1, core.Dict{
			"Subtype": core.Name("Widget"),
			"FT":      core.Name("Tx"),
			"T":       core.String("city"),
			"Rect":    core.Array{core.Int(0), core.Int(0), core.Int(50), core.Int(20)},
		})
		require.NoError(t, err)
		require.NoError(t, s.SetFieldValue("city", "Oslo"))

		_, err = s.AddAnnotation(1, core.Dict{"Subtype": core.Name("Text"), "Contents": core.String("note")})
		require.NoError(t, err)
	})

	out := open(t, data)
	form, ok, err := dictOf(out, out.Catalog().Get("AcroForm"))
	require.NoError(t, err)
	require.True(t, ok)
	need, _ := form.GetBool("NeedAppearances")
	assert.True(t, bool(need))
	fields, _ := form.GetArray("Fields")
	require.Len(t, fields, 3)

	person, _, err := dictOf(out, fields[0])
	require.NoError(t, err)
	kids, _ := person.GetArray("Kids")
	first, _, err := dictOf(out, kids[0])
	require.NoError(t, err)
	v, _ := first.GetString("V")
	assert.Equal(t, "Zoë", v.Text())

	agree, _, err := dictOf(out, fields[1])
	require.NoError(t, err)
	state, _ := agree.GetName("V")
	assert.Equal(t, core.Name("Yes"), state)
	kids, _ = agree.GetArray("Kids")
	widget, _, err := dictOf(out, kids[0])
	require.NoError(t, err)
	as, _ := widget.GetName("AS")
	assert.Equal(t, core.Name("Yes"), as)

	city, _, err := dictOf(out, fields[2])
	require.NoError(t, err)
	v, _ = city.GetString("V")
	assert.Equal(t, "Oslo", v.Text())

	page, err := out.GetPage(1)
	require.NoError(t, err)
	annots, _ := page.Dict.GetArray("Annots")
	require.Len(t, annots, 2)
	assert.Equal(t, fields[2], annots[0])
	note, _, err := dictOf(out, annots[1])
	require.NoError(t, err)
	assert.Equal(t, page.Ref, note.Get("P"))
}

func TestAddAnnotationCreatesForm(t *testing.T) {
	src := open(t, pdftest.Pages(1).Bytes())
	out := open(t, stamp(t, src, func(s *Stamper) {
		assert.ErrorIs(t, s.SetFieldValue("name", "x"), ErrFieldNotFound)
		_, err := s.AddAnnotation(1, core.Dict{"Subtype": core.Name("Widget"), "FT": core.Name("Tx"), "T": core.String("name")})
		require.NoError(t, err)
	}))
	form, ok, err := dictOf(out, out.Catalog().Get("AcroForm"))
	require.NoError(t, err)
	require.True(t, ok)
	fields, _ := form.GetArray("Fields")
	assert.Len(t, fields, 1)
}

func TestImportPage(t *testing.T) {
	other := pdftest.New()
	other.Trailer = "/Root 1 0 R"
	other.Add(1, "<< /Type /Catalog /Pages 2 0 R >>")
	other.Add(2, "<< /Type /Pages /Kids [3 0 R 5 0 R] /Count 2 /MediaBox [0 0 612 792] >>")
	other.Add(3, "<< /Type /Page /Parent 2 0 R /Contents 4 0 R /Resources << /Font << /F1 30 0 R >> >> /CropBox [10 10 200 300] >>")
	other.AddStream(4, "<< >>", []byte(pageText(1)))
	other.Add(5, "<< /Type /Page /Parent 2 0 R /Contents 6 0 R >>")
	other.AddStream(6, "<< >>", []byte(pageText(2)))
	other.Add(30, "<< /Type /Font /Subtype /Type1 /BaseFont /Times-Roman >>")
	src := open(t, other.Bytes())
	dst := open(t, pdftest.Pages(1).Bytes())

	data := stamp(t, dst, func(s *Stamper) {
		ref, err := s.ImportPage(src, 1)
		require.NoError(t, err)
		over, err := s.ContentOver(1)
		require.NoError(t, err)
		name, err := over.AddResource("XObject", ref)
		require.NoError(t, err)
		fmt.Fprintf(over, "q 0.5 0 0 0.5 0 0 cm /%s Do Q", name)

		font1, err := s.Import(src, core.IndirectRef{Number: 30, Doc: src.DocID()})
		require.NoError(t, err)
		font2, err := s.Import(src, core.IndirectRef{Number: 30, Doc: src.DocID()})
		require.NoError(t, err)
		assert.Equal(t, font1, font2)

		self := dst.Ref(3)
		same, err := s.Import(dst, self)
		require.NoError(t, err)
		assert.Equal(t, self, same)

		page, err := s.Import(src, src.Ref(5))
		require.NoError(t, err)
		d, err := dst.Resolve(page)
		require.NoError(t, err)
		assert.False(t, d.(core.Dict).Has("Parent"))
	})

	out := open(t, data)
	assert.Equal(t, 1, out.PageCount())
	page, err := out.GetPage(1)
	require.NoError(t, err)
	res, err := page.Resources()
	require.NoError(t, err)
	xobjects, _, err := dictOf(out, res.Get("XObject"))
	require.NoError(t, err)
	resolved, err := out.Resolve(xobjects.Get("Xo1"))
	require.NoError(t, err)
	form := resolved.(*core.Stream)
	decoded, err := form.Decode()
	require.NoError(t, err)
	assert.Equal(t, pageText(1), string(decoded))
	bbox, _ := form.Dict.GetArray("BBox")
	assert.Equal(t, core.Array{core.Int(10), core.Int(10), core.Int(200), core.Int(300)}, bbox)

	formRes, _, err := dictOf(out, form.Dict.Get("Resources"))
	require.NoError(t, err)
	fonts, _, err := dictOf(out, formRes.Get("Font"))
	require.NoError(t, err)
	font, _, err := dictOf(out, fonts.Get("F1"))
	require.NoError(t, err)
	base, _ := font.GetName("BaseFont")
	assert.Equal(t, core.Name("Times-Roman"), base)
}

func TestForeignReferenceWithoutImport(t *testing.T) {
	src := open(t, pdftest.Pages(1).Bytes())
	dst := open(t, pdftest.Pages(1).Bytes())
	s, err := New(dst, &bytes.Buffer{})
	require.NoError(t, err)
	dst.Catalog()["Stolen"] = src.Ref(3)
	assert.ErrorIs(t, s.Close(), core.ErrForeignReference)
}

func TestUnreachableObjectsDropped(t *testing.T) {
	b := pdftest.Pages(1)
	b.Add(40, "(orphan marker)")
	b.Add(41, "<< /Ref 40 0 R >>")
	src := open(t, b.Bytes())
	out := stamp(t, src, func(s *Stamper) {
		s.AddObject(core.String("unused marker"))
	})
	assert.NotContains(t, string(out), "orphan marker")
	assert.NotContains(t, string(out), "unused marker")

	reopened := open(t, out)
	// catalog, page tree, page and content stream
	assert.Equal(t, 5, reopened.NumObjects())
}

func TestStampAfterPageEdits(t *testing.T) {
	src := open(t, pdftest.Pages(3).Bytes(), reader.WithPartial(true))
	require.NoError(t, src.DeletePage(2))
	out := open(t, stamp(t, src, func(s *Stamper) {
		over, err := s.ContentOver(2)
		require.NoError(t, err)
		fmt.Fprint(over, "STAMP")
	}, WithFullCompression()))
	c := contents(t, out)
	require.Len(t, c, 2)
	assert.Contains(t, c[0], pageText(1))
	assert.Contains(t, c[1], pageText(3))
	assert.Contains(t, c[1], "STAMP")
}

func TestContentOnRemovedPageIsSkipped(t *testing.T) {
	src := open(t, pdftest.Pages(2).Bytes())
	out := open(t, stamp(t, src, func(s *Stamper) {
		over, err := s.ContentOver(2)
		require.NoError(t, err)
		fmt.Fprint(over, "STAMP")
		require.NoError(t, src.DeletePage(2))
	}))
	assert.Equal(t, []string{pageText(1)}, contents(t, out))
}

func TestXRefStreamWidths(t *testing.T) {
	rows := map[int]xrefRow{
		1: {kind: 1, field2: 300},
		2: {kind: 2, field2: 1, field3: 4},
	}
	stm, err := xrefStream(rows, 3, core.Dict{"Root": core.IndirectRef{Number: 1}})
	require.NoError(t, err)
	w, _ := stm.Dict.GetArray("W")
	assert.Equal(t, core.Array{core.Int(1), core.Int(2), core.Int(2)}, w)

	table, err := core.ParseXRefStream(stm)
	require.NoError(t, err)
	e, ok := table.Get(1)
	require.True(t, ok)
	assert.Equal(t, int64(300), e.Offset)
	e, ok = table.Get(2)
	require.True(t, ok)
	assert.Equal(t, core.EntryCompressed, e.Kind)
	assert.Equal(t, 4, e.Index)
}
