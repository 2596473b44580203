package vector_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/weaviate/entities/models"

	"webrag/internal/vector"
)

type MockSchemaClient struct{ mock.Mock }

func (m *MockSchemaClient) ClassExists(ctx context.Context, className string) (bool, error) {
	args := m.Called(ctx, className)
	return args.Bool(0), args.Error(1)
}

func (m *MockSchemaClient) CreateClass(ctx context.Context, class *models.Class) error {
	return m.Called(ctx, class).Error(0)
}

func (m *MockSchemaClient) GetClass(ctx context.Context, className string) (*models.Class, error) {
	args := m.Called(ctx, className)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Class), args.Error(1)
}

func (m *MockSchemaClient) AddProperty(ctx context.Context, className string, property *models.Property) error {
	return m.Called(ctx, className, property).Error(0)
}

func TestEnsureSchema(t *testing.T) {
	t.Run("creates class when missing", func(t *testing.T) {
		client := new(MockSchemaClient)
		client.On("ClassExists", mock.Anything, vector.ClassName).Return(false, nil)
		client.On("CreateClass", mock.Anything, mock.MatchedBy(func(c *models.Class) bool {
			return c.Class == vector.ClassName && c.Vectorizer == "none" && len(c.Properties) == 6
		})).Return(nil)

		require.NoError(t, vector.EnsureSchema(context.Background(), client))
		client.AssertExpectations(t)
	})

	t.Run("backfills missing properties on existing class", func(t *testing.T) {
		client := new(MockSchemaClient)
		client.On("ClassExists", mock.Anything, vector.ClassName).Return(true, nil)
		client.On("GetClass", mock.Anything, vector.ClassName).Return(&models.Class{
			Class: vector.ClassName,
			Properties: []*models.Property{
				{Name: "text"}, {Name: "jobId"}, {Name: "sourceUrl"}, {Name: "chunkIndex"},
			},
		}, nil)
		client.On("AddProperty", mock.Anything, vector.ClassName, mock.MatchedBy(func(p *models.Property) bool {
			return p.Name == "embeddingModel" || p.Name == "dimension"
		})).Return(nil).Twice()

		require.NoError(t, vector.EnsureSchema(context.Background(), client))
		client.AssertExpectations(t)
		client.AssertNotCalled(t, "CreateClass", mock.Anything, mock.Anything)
	})

	t.Run("complete class is left untouched", func(t *testing.T) {
		client := new(MockSchemaClient)
		client.On("ClassExists", mock.Anything, vector.ClassName).Return(true, nil)
		client.On("GetClass", mock.Anything, vector.ClassName).Return(&models.Class{
			Class: vector.ClassName,
			Properties: []*models.Property{
				{Name: "text"}, {Name: "jobId"}, {Name: "sourceUrl"},
				{Name: "chunkIndex"}, {Name: "embeddingModel"}, {Name: "dimension"},
			},
		}, nil)

		require.NoError(t, vector.EnsureSchema(context.Background(), client))
		client.AssertNotCalled(t, "AddProperty", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("existence check failure propagates", func(t *testing.T) {
		client := new(MockSchemaClient)
		client.On("ClassExists", mock.Anything, vector.ClassName).Return(false, assert.AnError)
		assert.Error(t, vector.EnsureSchema(context.Background(), client))
	})
}
