package controllers

import (
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/currency"

	"github.com/angelmondragon/shopfront-backend/internal/catalog"
	"github.com/angelmondragon/shopfront-backend/internal/dbtest"
	"github.com/angelmondragon/shopfront-backend/pkg/pagination"
)

func collectionRouter(t *testing.T) http.Handler {
	t.Helper()
	client := dbtest.OpenSQLite(t)
	svc, err := catalog.NewService(catalog.NewRepository(client.DB()), client, currency.USD)
	require.NoError(t, err)

	logg := testLogger()
	r := chi.NewRouter()
	r.Get("/collections", CollectionList(svc, logg))
	r.Get("/collections/{slug}", CollectionDetail(svc, logg))
	r.Get("/collections/{slug}/products", CollectionProducts(svc, logg))
	r.Post("/admin/products", AdminCreateProduct(svc, logg))
	r.Get("/admin/collections", AdminListCollections(svc, logg))
	r.Post("/admin/collections", AdminCreateCollection(svc, logg))
	r.Post("/admin/collections/bulk-deactivate", AdminBulkSetCollectionsActive(svc, logg, false))
	r.Patch("/admin/collections/{collectionId}", AdminUpdateCollection(svc, logg))
	r.Delete("/admin/collections/{collectionId}", AdminDeleteCollection(svc, logg))
	r.Post("/admin/collections/{collectionId}/activate", AdminSetCollectionActive(svc, logg, true))
	r.Post("/admin/collections/{collectionId}/deactivate", AdminSetCollectionActive(svc, logg, false))
	return r
}

func TestCollectionLifecycle(t *testing.T) {
	h := collectionRouter(t)

	rec := serve(h, newRequest(http.MethodPost, "/admin/collections",
		`{"name":" Resort  Wear ","image_url":"https://cdn.example.com/resort.jpg"}`, uuid.Nil))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeData[catalog.CollectionDetail](t, rec)
	assert.Equal(t, "Resort Wear", created.Name)
	assert.Equal(t, "resort-wear", created.Slug)

	rec = serve(h, newRequest(http.MethodPost, "/admin/products",
		`{"name":"Camp Shirt","price":"40","collection_id":"`+created.ID.String()+`","sizes":[{"size":"M","quantity":1}]}`, uuid.Nil))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = serve(h, newRequest(http.MethodGet, "/collections", "", uuid.Nil))
	require.Equal(t, http.StatusOK, rec.Code)
	page := decodeData[pagination.Page[catalog.CollectionSummary]](t, rec)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "https://cdn.example.com/resort.jpg", page.Items[0].ImageURL)

	rec = serve(h, newRequest(http.MethodGet, "/collections/resort-wear/products", "", uuid.Nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	products := decodeData[pagination.Page[catalog.ProductSummary]](t, rec)
	require.Len(t, products.Items, 1)
	assert.Equal(t, "Camp Shirt", products.Items[0].Name)

	rec = serve(h, newRequest(http.MethodPost, "/admin/collections/"+created.ID.String()+"/deactivate", "", uuid.Nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.False(t, decodeData[catalog.CollectionDetail](t, rec).IsActive)

	rec = serve(h, newRequest(http.MethodGet, "/collections/resort-wear", "", uuid.Nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(h, newRequest(http.MethodGet, "/admin/collections", "", uuid.Nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeData[pagination.Page[catalog.CollectionDetail]](t, rec).Items, 1)

	rec = serve(h, newRequest(http.MethodPost, "/admin/collections/"+created.ID.String()+"/activate", "", uuid.Nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(h, newRequest(http.MethodPatch, "/admin/collections/"+created.ID.String(), `{"name":"Resort"}`, uuid.Nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "resort", decodeData[catalog.CollectionDetail](t, rec).Slug)

	rec = serve(h, newRequest(http.MethodGet, "/collections/resort", "", uuid.Nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(h, newRequest(http.MethodDelete, "/admin/collections/"+created.ID.String(), "", uuid.Nil))
	require.Equal(t, http.StatusOK, rec.Code)
	rec = serve(h, newRequest(http.MethodDelete, "/admin/collections/"+created.ID.String(), "", uuid.Nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCollectionWriteValidation(t *testing.T) {
	h := collectionRouter(t)

	rec := serve(h, newRequest(http.MethodPost, "/admin/collections",
		`{"name":"Denim","image_url":"https://cdn.example.com/denim.png"}`, uuid.Nil))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	denim := decodeData[catalog.CollectionDetail](t, rec)

	rec = serve(h, newRequest(http.MethodPost, "/admin/collections",
		`{"name":"DENIM","image_url":"https://cdn.example.com/denim.png"}`, uuid.Nil))
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, catalog.MsgCollectionExists, decodeError(t, rec).Error.Message)

	cases := map[string]string{
		"missing image": `{"name":"Knit"}`,
		"svg image":     `{"name":"Knit","image_url":"https://cdn.example.com/knit.svg"}`,
		"short name":    `{"name":"K","image_url":"https://cdn.example.com/knit.png"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := serve(h, newRequest(http.MethodPost, "/admin/collections", body, uuid.Nil))
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}

	rec = serve(h, newRequest(http.MethodPatch, "/admin/collections/"+denim.ID.String(), `{}`, uuid.Nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(h, newRequest(http.MethodPatch, "/admin/collections/"+denim.ID.String(), `{"image_url":"ftp://x/y.png"}`, uuid.Nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(h, newRequest(http.MethodPatch, "/admin/collections/not-a-uuid", `{"is_active":true}`, uuid.Nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCollectionBulkDeactivate(t *testing.T) {
	h := collectionRouter(t)

	var ids []string
	for _, name := range []string{"Basics", "Tailoring"} {
		rec := serve(h, newRequest(http.MethodPost, "/admin/collections",
			`{"name":"`+name+`","image_url":"https://cdn.example.com/c.webp"}`, uuid.Nil))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		ids = append(ids, decodeData[catalog.CollectionDetail](t, rec).ID.String())
	}

	rec := serve(h, newRequest(http.MethodPost, "/admin/collections/bulk-deactivate",
		`{"ids":["`+ids[0]+`","`+ids[1]+`"]}`, uuid.Nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decodeData[bulkResult](t, rec)
	assert.EqualValues(t, 2, result.Updated)
	assert.Equal(t, "2 collection(s) deactivated successfully.", result.Detail)

	rec = serve(h, newRequest(http.MethodGet, "/collections", "", uuid.Nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeData[pagination.Page[catalog.CollectionSummary]](t, rec).Items)

	rec = serve(h, newRequest(http.MethodPost, "/admin/collections/bulk-deactivate", `{"ids":[]}`, uuid.Nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, catalog.MsgCollectionIDs, decodeError(t, rec).Error.Message)
}
