package namespace

import (
	"context"

	zcpv1 "github.com/yanghoon/zcp-iam/api/v1"
	"github.com/yanghoon/zcp-iam/internal/common"
	"github.com/yanghoon/zcp-iam/internal/quota"
)

// GetNamespaceResourceDetail returns the hard and used quota dimensions and the
// container defaults of a namespace. Dimensions without a managed object are empty.
func (s *Service) GetNamespaceResourceDetail(ctx context.Context, name string) (*zcpv1.NamespaceResourceDetail, error) {
	if _, err := s.GetNamespace(ctx, name); err != nil {
		return nil, err
	}

	hard, used, err := quota.GetResourceQuotaSpecs(ctx, s.Client, name)
	if err != nil {
		return nil, common.WithStage(common.CodeNamespaceResource, zcpv1.StageResourceQuota, zcpv1.StageNamespace, err)
	}

	limitRange, err := quota.GetLimitRangeSpec(ctx, s.Client, name)
	if err != nil {
		return nil, common.WithStage(common.CodeNamespaceResource, zcpv1.StageLimitRange, zcpv1.StageResourceQuota, err)
	}

	return &zcpv1.NamespaceResourceDetail{
		Namespace:  name,
		Hard:       hard,
		Used:       used,
		LimitRange: limitRange,
	}, nil
}
