// Copyright 2026 Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package handler

import (
	"context"

	"github.com/quarrylabs/quarry/pkg/auth"
	"github.com/quarrylabs/quarry/pkg/logger"
	"github.com/quarrylabs/quarry/pkg/metadata/registry"
	"github.com/quarrylabs/quarry/pkg/s3api/s3consts"
	"github.com/quarrylabs/quarry/pkg/s3api/s3err"
	"github.com/quarrylabs/quarry/pkg/s3api/s3types"
)

// ServiceHandler serves account-level operations.
type ServiceHandler struct {
	engine   *auth.Engine
	registry *registry.Registry
}

func NewServiceHandler(engine *auth.Engine, reg *registry.Registry) *ServiceHandler {
	return &ServiceHandler{engine: engine, registry: reg}
}

// ListBuckets returns every bucket owned by the requester.
func (h *ServiceHandler) ListBuckets(ctx context.Context, m *auth.RequestMetadata) (*s3types.ListAllMyBucketsResult, error) {
	if h.engine.AuthorizeService(m) != auth.PermitService {
		return nil, s3err.ErrAccessDenied
	}

	buckets, err := h.registry.ListBucketsByOwner(ctx, m.User.GUID)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("owner", m.User.GUID).Msg("failed to list buckets")
		return nil, s3err.ErrInternalError
	}

	result := &s3types.ListAllMyBucketsResult{
		Xmlns: s3consts.XMLNamespace,
		Owner: s3types.Owner{ID: m.User.GUID, DisplayName: m.User.DisplayName},
	}
	for _, b := range buckets {
		result.Buckets.Buckets = append(result.Buckets.Buckets, s3types.BucketInfo{
			Name:         b.Name,
			CreationDate: formatTime(b.CreatedAt),
			Region:       b.Region,
		})
	}
	return result, nil
}
