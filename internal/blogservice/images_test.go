package blogservice

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/postdesk/internal/apperr"
)

func pngUpload(name string) ImageUpload {
	return ImageUpload{Filename: name, ContentType: "image/png", Size: int64(len(pngData)), Data: pngData}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"photo.png":             "photo.png",
		"../../etc/passwd":      "passwd",
		`C:\Users\me\cat 1.jpg`: "cat_1.jpg",
		"my pic (1).PNG":        "my_pic__1_.PNG",
		"snow_man.gif":          "snow_man.gif",
	}
	for in, want := range cases {
		got, err := SanitizeFilename(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, bad := range []string{"", ".", "..", "dir/", "a/.."} {
		_, err := SanitizeFilename(bad)
		assert.ErrorIs(t, err, apperr.ErrValidation, "input %q", bad)
	}
}

func TestUploadImage(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	img, err := svc.UploadImage(ctx, pngUpload("My Photo.png"))
	require.NoError(t, err)
	assert.Equal(t, "My_Photo.png", img.Filename)
	assert.Equal(t, "public/blog-images/My_Photo.png", img.Path)
	assert.Equal(t, "/blog-images/My_Photo.png", img.URL)
	assert.Equal(t, "image/png", img.Type)
	assert.Equal(t, "feat: upload image My_Photo.png", img.Commit.Message)

	f, err := store.Get(ctx, img.Path)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(pngData, f.Content))
}

func TestUploadImage_NameOverridesFilename(t *testing.T) {
	svc, _ := newTestService(t)
	in := pngUpload("upload.png")
	in.Name = "cover.png"
	img, err := svc.UploadImage(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "cover.png", img.Filename)
}

func TestUploadImage_Collision(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.UploadImage(ctx, pngUpload("a.png"))
	require.NoError(t, err)
	_, err = svc.UploadImage(ctx, pngUpload("a.png"))
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestUploadImage_RejectedBeforeStore(t *testing.T) {
	big := make([]byte, 6<<20)
	copy(big, pngData)

	cases := map[string]ImageUpload{
		"too large":      {Filename: "big.png", ContentType: "image/png", Size: int64(len(big)), Data: big},
		"declared large": {Filename: "big.png", ContentType: "image/png", Size: 6 << 20, Data: pngData},
		"bad type":       {Filename: "doc.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4")},
		"sniff mismatch": {Filename: "fake.png", ContentType: "image/png", Data: []byte("GIF89a....")},
		"not svg":        {Filename: "x.svg", ContentType: "image/svg+xml", Data: []byte("<html></html>")},
		"bad name":       {Filename: "..", ContentType: "image/png", Data: pngData},
		"empty":          {Filename: "e.png", ContentType: "image/png"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			svc, store := newTestService(t)
			_, err := svc.UploadImage(context.Background(), in)
			assert.ErrorIs(t, err, apperr.ErrValidation)
			assert.Zero(t, store.calls.Load())
		})
	}
}

func TestUploadImage_AcceptsSVGAndJPG(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.UploadImage(ctx, ImageUpload{
		Filename: "logo.svg", ContentType: "image/svg+xml",
		Data: []byte(`<?xml version="1.0"?><svg xmlns="http://www.w3.org/2000/svg"></svg>`),
	})
	require.NoError(t, err)

	img, err := svc.UploadImage(ctx, ImageUpload{
		Filename: "p.jpg", ContentType: "image/jpg",
		Data: []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00"),
	})
	require.NoError(t, err)
	assert.Equal(t, "image/jpg", img.Type)
}

func TestIsSVG(t *testing.T) {
	longComment := "<!-- " + strings.Repeat("exported by a drawing tool ", 50) + "-->"
	cases := []struct {
		name string
		data string
		want bool
	}{
		{"bare", `<svg xmlns="http://www.w3.org/2000/svg"/>`, true},
		{"long prolog", `<?xml version="1.0" encoding="UTF-8"?>` + "\n" + longComment + "\n" + `<svg width="1" height="1"></svg>`, true},
		{"doctype", `<?xml version="1.0"?><!DOCTYPE svg PUBLIC "-//W3C//DTD SVG 1.1//EN" "http://www.w3.org/Graphics/SVG/1.1/DTD/svg11.dtd"><svg/>`, true},
		{"latin1 declaration", `<?xml version="1.0" encoding="ISO-8859-1"?><svg/>`, true},
		{"bom", "\xef\xbb\xbf<svg/>", true},
		{"html", `<html><body><svg/></body></html>`, false},
		{"text", `just text <svg`, false},
		{"empty", ``, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, isSVG([]byte(tc.data)))
		})
	}
}

func TestUploadImage_SVGWithLongProlog(t *testing.T) {
	svc, _ := newTestService(t)
	data := `<?xml version="1.0"?>` + "\n<!-- " + strings.Repeat("x", 1100) + " -->\n" + `<svg xmlns="http://www.w3.org/2000/svg"></svg>`
	_, err := svc.UploadImage(context.Background(), ImageUpload{
		Filename: "drawing.svg", ContentType: "image/svg+xml", Data: []byte(data),
	})
	require.NoError(t, err)
}

func TestUploadImages_PartialSuccess(t *testing.T) {
	svc, _ := newTestService(t)
	results := svc.UploadImages(context.Background(), []ImageUpload{
		pngUpload("ok.png"),
		{Filename: "doc.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4")},
		pngUpload("ok.png"),
	})
	require.Len(t, results, 3)

	var succeeded int
	for _, r := range results {
		if r.Err == nil {
			succeeded++
			assert.NotNil(t, r.Image)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, "doc.pdf", results[1].Filename)
	assert.ErrorIs(t, results[1].Err, apperr.ErrValidation)
}

func TestListAndDeleteImages(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	for _, n := range []string{"a.png", "c.png", "b.png"} {
		_, err := svc.UploadImage(ctx, pngUpload(n))
		require.NoError(t, err)
	}

	images, err := svc.ListImages(ctx)
	require.NoError(t, err)
	require.Len(t, images, 3)
	assert.Equal(t, "c.png", images[0].Name)
	assert.Equal(t, "/blog-images/c.png", images[0].URL)
	assert.Equal(t, int64(len(pngData)), images[0].Size)

	res, err := svc.DeleteImage(ctx, "c.png", images[0].SHA)
	require.NoError(t, err)
	assert.Equal(t, "feat: delete image c.png", res.Commit.Message)

	_, err = svc.DeleteImage(ctx, "b.png", "stale")
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = svc.DeleteImage(ctx, "b.png", "")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	images, err = svc.ListImages(ctx)
	require.NoError(t, err)
	assert.Len(t, images, 2)
}
