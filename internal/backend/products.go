package backend

import (
	"context"
	"net/http"
	"net/url"

	"finitefield.org/kmart-web/internal/catalog"
)

// ListProducts fetches the full catalog.
func (c *Client) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	resp, err := c.do(ctx, "/product/list", http.MethodGet, "/product/list", nil, "")
	if err != nil {
		return nil, err
	}
	return decodeProducts(resp)
}

// ProductBySlug fetches a single product.
func (c *Client) ProductBySlug(ctx context.Context, slug string) (catalog.Product, error) {
	resp, err := c.do(ctx, "/product/{slug}", http.MethodGet, "/product/"+url.PathEscape(slug), nil, "")
	if err != nil {
		return catalog.Product{}, err
	}
	var product catalog.Product
	if err := resp.Decode(&product); err != nil {
		return catalog.Product{}, err
	}
	return product, nil
}

// ProductsByCategory lists products sharing a category name.
func (c *Client) ProductsByCategory(ctx context.Context, category string) ([]catalog.Product, error) {
	resp, err := c.do(ctx, "/product/category/{category}", http.MethodGet, "/product/category/"+url.PathEscape(category), nil, "")
	if err != nil {
		return nil, err
	}
	return decodeProducts(resp)
}

// ProductsByCategorySlug lists the products of a category page.
func (c *Client) ProductsByCategorySlug(ctx context.Context, catSlug string) ([]catalog.Product, error) {
	resp, err := c.do(ctx, "/product/catslug/{catslug}", http.MethodGet, "/product/catslug/"+url.PathEscape(catSlug), nil, "")
	if err != nil {
		return nil, err
	}
	return decodeProducts(resp)
}

// UploadProduct creates a product. The backend answers 201 with a message.
func (c *Client) UploadProduct(ctx context.Context, token string, payload catalog.UploadPayload) (string, error) {
	resp, err := c.do(ctx, "/product/upload", http.MethodPost, "/product/upload", payload, token)
	if err != nil {
		return "", err
	}
	return expectMessage(resp, http.StatusCreated)
}

// DeleteProduct removes a product. The backend answers 200 with a message.
func (c *Client) DeleteProduct(ctx context.Context, token, id string) (string, error) {
	resp, err := c.do(ctx, "/product/delete/{id}", http.MethodDelete, "/product/delete/"+url.PathEscape(id), nil, token)
	if err != nil {
		return "", err
	}
	return expectMessage(resp, http.StatusOK)
}

func decodeProducts(resp *Response) ([]catalog.Product, error) {
	products := []catalog.Product{}
	if err := resp.Decode(&products); err != nil {
		return nil, err
	}
	if products == nil {
		products = []catalog.Product{}
	}
	return products, nil
}

// expectMessage enforces the exact success status the backend documents and
// returns the message it carried.
func expectMessage(resp *Response, want int) (string, error) {
	var payload messagePayload
	if len(resp.Body) > 0 {
		if err := resp.Decode(&payload); err != nil {
			return "", err
		}
	}
	if resp.Status != want {
		return "", &APIError{Kind: KindServer, Status: resp.Status, Message: GenericMessage}
	}
	return payload.Message, nil
}
