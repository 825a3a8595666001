package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halvars/receptbox/internal/codec"
	"github.com/halvars/receptbox/internal/domain"
	"github.com/halvars/receptbox/internal/store"
	"github.com/halvars/receptbox/internal/store/memory"
)

func seedStores(t *testing.T) (*domain.Document, *memory.Images) {
	t.Helper()
	ctx := context.Background()
	images := memory.NewImages()
	images.Now = func() int64 { return 1700000000000 }
	id1, err := images.Put(ctx, []byte{1, 2, 3, 4}, store.PutOptions{ID: "img-1", MimeType: "image/jpeg", Width: 4, Height: 2})
	require.NoError(t, err)
	id2, err := images.Put(ctx, []byte{9, 8, 7}, store.PutOptions{ID: "img-2", MimeType: "image/png", Width: 1, Height: 1})
	require.NoError(t, err)
	doc := &domain.Document{
		Theme: "theme-klassisk",
		Recipes: []domain.Recipe{
			{
				ID: "r-1", Title: "Lax i ugn", Category: "fisk",
				Images:      []domain.ImageRef{domain.StoredRef(id1)},
				Ingredients: []string{"lax", "citron"},
				Tags:        []string{"snabbt"},
				CreatedAt:   1,
			},
			{
				ID: "r-2", Title: "Julgodis", Category: "godis", Favorite: true,
				Images:    []domain.ImageRef{domain.StoredRef(id2)},
				CreatedAt: 2,
			},
		},
	}
	return doc, images
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	doc, images := seedStores(t)
	var progress []int
	data, err := Export(ctx, doc, images, time.UnixMilli(1700000001000), func(done, total int) {
		progress = append(progress, done)
		assert.Equal(t, 2, total)
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, progress)

	// Restore into empty stores.
	newDoc := domain.NewDocument()
	newDocs := memory.NewDocs()
	newImages := memory.NewImages()
	res, err := Import(ctx, data, newDoc, newDocs, newImages, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Recipes)
	assert.Equal(t, 2, res.Images)
	assert.Equal(t, 0, res.Skipped)

	// Recipes survive by id and field values.
	require.Len(t, newDoc.Recipes, 2)
	assert.Equal(t, doc.Recipes[0].ID, newDoc.Recipes[0].ID)
	assert.Equal(t, doc.Recipes[1].Favorite, newDoc.Recipes[1].Favorite)
	assert.Equal(t, "theme-klassisk", newDoc.Theme)

	// Image records survive by id with byte-for-byte blobs.
	rec, err := newImages.Get(ctx, "img-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, bytes.Equal([]byte{1, 2, 3, 4}, rec.Blob))
	assert.Equal(t, "image/jpeg", rec.MimeType)
	assert.Equal(t, int64(1700000000000), rec.CreatedAt)
}

func TestReimportCreatesNoDuplicates(t *testing.T) {
	ctx := context.Background()
	doc, images := seedStores(t)
	data, err := Export(ctx, doc, images, time.Now(), nil)
	require.NoError(t, err)

	// Import the envelope over the very stores it came from.
	docs := memory.NewDocs()
	res, err := Import(ctx, data, doc, docs, images, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Recipes)
	assert.Equal(t, 2, images.Len())
	require.Len(t, doc.Recipes, 2)
}

func TestValidateRejectsMalformedEnvelopes(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"not json", "inte json alls"},
		{"missing version", `{"meta":{"recipes":[]},"images":[]}`},
		{"wrong version", `{"version":2,"meta":{"recipes":[]},"images":[]}`},
		{"missing meta", `{"version":1,"images":[]}`},
		{"missing recipes", `{"version":1,"meta":{},"images":[]}`},
		{"missing images", `{"version":1,"meta":{"recipes":[]}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Validate([]byte(tc.data))
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestImportRejectsWithoutMutating(t *testing.T) {
	ctx := context.Background()
	doc, images := seedStores(t)
	docs := memory.NewDocs()
	_, err := Import(ctx, []byte(`{"version":7}`), doc, docs, images, nil)
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, 2, images.Len())
	assert.Len(t, doc.Recipes, 2)
	assert.Equal(t, 0, docs.Saves)
}

func TestImportSkipsUndecodableImages(t *testing.T) {
	ctx := context.Background()
	env := Envelope{
		Version: 1,
		Meta:    Meta{Recipes: []domain.Recipe{}, Theme: ""},
		Images: []Image{
			{ID: "bra", Type: "image/jpeg", DataURL: codec.ToDataURI([]byte{1, 2}, "image/jpeg")},
			{ID: "trasig", Type: "image/jpeg", DataURL: "data:image/jpeg;base64,@@@"},
		},
	}
	data, err := json.Marshal(env)
	require.NoError(t, err)
	doc := domain.NewDocument()
	images := memory.NewImages()
	res, err := Import(ctx, data, doc, memory.NewDocs(), images, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Images)
	assert.Equal(t, 1, res.Skipped)
	rec, err := images.Get(ctx, "bra")
	require.NoError(t, err)
	assert.NotNil(t, rec)
}

func TestImportAbortsOnStoreFailureLeavingDocumentUntouched(t *testing.T) {
	ctx := context.Background()
	doc, images := seedStores(t)
	data, err := Export(ctx, doc, images, time.Now(), nil)
	require.NoError(t, err)

	local := &domain.Document{Recipes: []domain.Recipe{{ID: "lokal", Title: "Behålls"}}, Theme: domain.DefaultTheme}
	docs := memory.NewDocs()
	broken := memory.NewImages()
	broken.FailPut = errors.New("skrivning nekad")
	_, err = Import(ctx, data, local, docs, broken, nil)
	require.Error(t, err)
	// The metadata document was never switched.
	assert.Len(t, local.Recipes, 1)
	assert.Equal(t, "lokal", local.Recipes[0].ID)
	assert.Equal(t, 0, docs.Saves)
}

func TestImportMetadataMerges(t *testing.T) {
	doc := &domain.Document{Recipes: []domain.Recipe{{ID: "dub", Title: "Lokal version"}}, Theme: domain.DefaultTheme}
	data := []byte(`{"recipes":[{"id":"dub","title":"Fjärrversion"},{"id":"ny","title":"Ny"}],"theme":"theme-pastell"}`)
	added, err := ImportMetadata(data, doc)
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	require.Len(t, doc.Recipes, 2)
	assert.Equal(t, "Lokal version", doc.Recipes[0].Title)
	assert.Equal(t, "theme-pastell", doc.Theme)
}

func TestImportMetadataRejectsMissingRecipes(t *testing.T) {
	doc := domain.NewDocument()
	_, err := ImportMetadata([]byte(`{"theme":"theme-pastell"}`), doc)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestExportMetadataHasNoteAndNoImages(t *testing.T) {
	doc, _ := seedStores(t)
	data, err := ExportMetadata(doc, "")
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Contains(t, out, "note")
	assert.NotContains(t, out, "images")
	assert.NotContains(t, out, "version")
}

type fakeDelivery struct {
	filename string
	mime     string
	data     []byte
}

func (f *fakeDelivery) Deliver(filename, mime string, data []byte) error {
	f.filename, f.mime, f.data = filename, mime, data
	return nil
}

func TestEmergencyExport(t *testing.T) {
	doc, _ := seedStores(t)
	fd := &fakeDelivery{}
	em := Emergency{Delivery: fd, Now: func() time.Time { return time.Date(2026, 8, 30, 14, 5, 0, 0, time.UTC) }}
	require.NoError(t, em.ExportEmergency(doc))
	assert.Equal(t, "baste-recepten-NOD-export-20260830-1405.json", fd.filename)
	assert.Equal(t, "application/json", fd.mime)
	assert.True(t, strings.Contains(string(fd.data), "NÖD-export"))
	// The emergency file is itself a valid metadata-only import.
	target := domain.NewDocument()
	added, err := ImportMetadata(fd.data, target)
	require.NoError(t, err)
	assert.Equal(t, 2, added)
}

func TestFilenames(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 0, 0, time.UTC)
	assert.Equal(t, "baste-recepten-2026-01-02.json", Filename(ts))
	assert.Equal(t, "baste-recepten-recept-2026-01-02.json", MetaFilename(ts))
	assert.Equal(t, "baste-recepten-autobackup-20260102-0304.json", AutoFilename(ts))
	assert.Equal(t, "baste-recepten-NOD-export-20260102-0304.json", EmergencyFilename(ts))
}
