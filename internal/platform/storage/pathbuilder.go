package storage

import (
	"fmt"
	"mime"
	"strings"
)

// ProductImagePath places a product image under its tenant as
// companies/{companyId}/products/{productId}/{version}{ext}. Each upload gets
// a fresh version so CDN caches never serve a replaced image.
func ProductImagePath(companyID, productID, version, contentType string) (string, error) {
	parts := []struct{ name, value string }{
		{"company id", companyID},
		{"product id", productID},
		{"version", version},
	}
	clean := make([]string, 0, len(parts))
	for _, part := range parts {
		value := strings.TrimSpace(part.value)
		if value == "" {
			return "", fmt.Errorf("storage: %s is required", part.name)
		}
		if strings.ContainsAny(value, `/\`) || strings.Contains(value, "..") {
			return "", fmt.Errorf("storage: %s %q is not a valid path segment", part.name, value)
		}
		clean = append(clean, value)
	}
	return fmt.Sprintf("companies/%s/products/%s/%s%s", clean[0], clean[1], clean[2], imageExtension(contentType)), nil
}

func imageExtension(contentType string) string {
	switch strings.ToLower(strings.TrimSpace(contentType)) {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".img"
}
