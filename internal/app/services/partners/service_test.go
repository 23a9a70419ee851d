package partners_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monitaro/pjmanager/internal/app/domain/partner"
	"github.com/monitaro/pjmanager/internal/app/services/partners"
	"github.com/monitaro/pjmanager/internal/app/storage/memory"
	apperrors "github.com/monitaro/pjmanager/internal/errors"
	"github.com/monitaro/pjmanager/pkg/logger"
)

func TestPartnersCRUD(t *testing.T) {
	ctx := context.Background()
	svc := partners.New(memory.New(), logger.Discard())

	_, err := svc.Create(ctx, partner.Partner{Name: "   "})
	assert.Contains(t, apperrors.FieldErrors(err), "name")

	for _, name := range []string{"山本設備", "A設営", "佐藤電気"} {
		_, err := svc.Create(ctx, partner.Partner{Name: " " + name + " ", Type: "設置"})
		require.NoError(t, err)
	}

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "A設営", list[0].Name)

	updated, err := svc.Update(ctx, list[0].ID, partner.Partner{Name: "B設営", Type: "撤去", ContactInfo: "03-0000-0000"})
	require.NoError(t, err)
	assert.Equal(t, "B設営", updated.Name)
	assert.Equal(t, "撤去", updated.Type)
	assert.Equal(t, list[0].CreatedAt, updated.CreatedAt)

	_, err = svc.Update(ctx, 77, partner.Partner{Name: "x"})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}
