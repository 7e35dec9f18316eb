package v1

import (
	corev1 "k8s.io/api/core/v1"
)

const MetaGroup = "zcp.cloudzcp.io/"

const (
	ManagedByLabel = "app.kubernetes.io/managed-by"
	ManagedBy      = "zcp-iam"
)

const (
	UsernameLabel  = MetaGroup + "username"
	NamespaceLabel = MetaGroup + "namespace"
)

const (
	SystemPrefix            = "zcp-system"
	ServiceAccountInfix     = "sa"
	ClusterRoleBindingInfix = "crb"
	RoleBindingInfix        = "rb"
	ResourceQuotaInfix      = "rq"
	LimitRangeInfix         = "lr"
	TokenSecretSuffix       = "token"
)

const (
	NamespaceFinalizer = corev1.FinalizerKubernetes
	ContainerLimitType = corev1.LimitTypeContainer
)

const (
	ClusterRoleKind    = "ClusterRole"
	ServiceAccountKind = "ServiceAccount"
)

// Namespace status strings shown in listings.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

const (
	StageNamespace     = "namespace"
	StageResourceQuota = "resourcequota"
	StageLimitRange    = "limitrange"
)

const (
	UpdatePasswordAction = "UPDATE_PASSWORD"
	ConfigureTOTPAction  = "CONFIGURE_TOTP"
)
