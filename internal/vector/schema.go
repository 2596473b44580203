package vector

import (
	"context"

	"github.com/weaviate/weaviate/entities/models"
)

// SchemaClient is the slice of the Weaviate schema API the bootstrap needs.
type SchemaClient interface {
	ClassExists(ctx context.Context, className string) (bool, error)
	CreateClass(ctx context.Context, class *models.Class) error
	GetClass(ctx context.Context, className string) (*models.Class, error)
	AddProperty(ctx context.Context, className string, property *models.Property) error
}

// EnsureSchema creates the DocumentChunk class if missing and backfills any
// missing properties on an existing class.
func EnsureSchema(ctx context.Context, client SchemaClient) error {
	exists, err := client.ClassExists(ctx, ClassName)
	if err != nil {
		return err
	}

	properties := []*models.Property{
		{Name: "text", DataType: []string{"text"}},
		{Name: "jobId", DataType: []string{"string"}},
		{Name: "sourceUrl", DataType: []string{"string"}},
		{Name: "chunkIndex", DataType: []string{"int"}},
		{Name: "embeddingModel", DataType: []string{"string"}},
		{Name: "dimension", DataType: []string{"int"}},
	}

	if !exists {
		class := &models.Class{
			Class:       ClassName,
			Description: "An embedded chunk of an ingested web page",
			Vectorizer:  "none",
			Properties:  properties,
		}
		return client.CreateClass(ctx, class)
	}

	class, err := client.GetClass(ctx, ClassName)
	if err != nil {
		return err
	}

	existing := make(map[string]bool, len(class.Properties))
	for _, p := range class.Properties {
		existing[p.Name] = true
	}
	for _, p := range properties {
		if !existing[p.Name] {
			if err := client.AddProperty(ctx, ClassName, p); err != nil {
				return err
			}
		}
	}
	return nil
}
