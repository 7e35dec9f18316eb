package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	zcpv1 "github.com/yanghoon/zcp-iam/api/v1"
)

const (
	ProviderZitadel = "zitadel"
	ProviderLDAP    = "ldap"
)

// Config holds the settings of a single run. It is built once at startup and
// never modified afterwards.
type Config struct {
	KubeconfigFile string

	// SystemNamespace holds the user ServiceAccounts and their token Secrets.
	SystemNamespace    string
	DefaultClusterRole zcpv1.ClusterRole

	APIServerEndpoint string
	ClusterName       string
	ContextName       string
	TokenTimeout      time.Duration

	IdentityProvider string
	Zitadel          ZitadelConfig
	LDAP             LDAPConfig

	PushgatewayURL string
	PushJob        string
}

type ZitadelConfig struct {
	Domain   string
	Port     uint16
	Insecure bool
	KeyPath  string
	// PageSize is the number of users requested per list call.
	PageSize uint32
}

type LDAPConfig struct {
	URL                string
	BaseDN             string
	BindDN             string
	BindPassword       string
	UserObjectClass    string
	NamespaceAttribute string
	// PageSize is the simple paged results size used when listing users.
	PageSize uint32
}

// LoadEnv loads variables from a .env file in the working directory, if any.
func LoadEnv() error {
	if _, err := os.Stat(".env"); err == nil {
		return godotenv.Load(".env")
	}
	return nil
}

// New returns a Config built from environment variables.
func New() *Config {
	return &Config{
		KubeconfigFile:     getEnv("KUBECONFIG_FILE", ""),
		SystemNamespace:    getEnv("ZCP_SYSTEM_NAMESPACE", "zcp-system"),
		DefaultClusterRole: zcpv1.ClusterRole(getEnv("ZCP_DEFAULT_CLUSTER_ROLE", zcpv1.Member.String())),
		APIServerEndpoint:  getEnv("KUBERNETES_API_ENDPOINT", "https://kubernetes.default.svc"),
		ClusterName:        getEnv("KUBECONFIG_CLUSTER_NAME", "zcp-cluster"),
		ContextName:        getEnv("KUBECONFIG_CONTEXT_NAME", "zcp-context"),
		TokenTimeout:       time.Duration(getEnvInt("TOKEN_TIMEOUT_SECONDS", 10)) * time.Second,
		IdentityProvider:   getEnv("IDENTITY_PROVIDER", ProviderZitadel),
		Zitadel: ZitadelConfig{
			Domain:   getEnv("ZITADEL_DOMAIN", "localhost"),
			Port:     uint16(getEnvInt("ZITADEL_PORT", 443)),
			Insecure: getEnv("ZITADEL_INSECURE", "false") == "true",
			KeyPath:  getEnv("ZITADEL_KEY_PATH", "zitadel-key.json"),
			PageSize: uint32(getEnvInt("IDENTITY_PAGE_SIZE", 100)),
		},
		LDAP: LDAPConfig{
			URL:                getEnv("LDAP_URL", "ldap://localhost:389"),
			BaseDN:             getEnv("LDAP_BASE_DN", "ou=users,dc=example,dc=com"),
			BindDN:             getEnv("LDAP_BIND_DN", "cn=admin,dc=example,dc=com"),
			BindPassword:       getEnv("LDAP_BIND_PASSWORD", ""),
			UserObjectClass:    getEnv("LDAP_USER_OBJECT_CLASS", "inetOrgPerson"),
			NamespaceAttribute: getEnv("LDAP_NAMESPACE_ATTRIBUTE", "description"),
			PageSize:           uint32(getEnvInt("IDENTITY_PAGE_SIZE", 100)),
		},
		PushgatewayURL: getEnv("PUSHGATEWAY_URL", ""),
		PushJob:        getEnv("PUSHGATEWAY_JOB", "zcp-iam"),
	}
}

// AddFlags binds the settings to fs. Values already in c are the flag defaults.
func (c *Config) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.KubeconfigFile, "kubeconfig-file", c.KubeconfigFile, "The path to the kubeconfig file. Empty uses the default loading rules.")
	fs.StringVar(&c.SystemNamespace, "system-namespace", c.SystemNamespace, "The namespace holding user service accounts.")
	fs.StringVar((*string)(&c.DefaultClusterRole), "default-cluster-role", c.DefaultClusterRole.String(), "The cluster role granted to new users.")
	fs.StringVar(&c.APIServerEndpoint, "api-server", c.APIServerEndpoint, "The API server address written into issued kubeconfigs.")
	fs.StringVar(&c.ClusterName, "kubeconfig-cluster-name", c.ClusterName, "The cluster name written into issued kubeconfigs.")
	fs.StringVar(&c.ContextName, "kubeconfig-context-name", c.ContextName, "The context name written into issued kubeconfigs.")
	fs.DurationVar(&c.TokenTimeout, "token-timeout", c.TokenTimeout, "How long to wait for a service account token to be populated.")
	fs.StringVar(&c.IdentityProvider, "identity-provider", c.IdentityProvider, "The identity provider backend: zitadel or ldap.")
	fs.StringVar(&c.Zitadel.Domain, "zitadel-domain", c.Zitadel.Domain, "The zitadel instance domain.")
	fs.Uint16Var(&c.Zitadel.Port, "zitadel-port", c.Zitadel.Port, "The zitadel instance port.")
	fs.BoolVar(&c.Zitadel.Insecure, "zitadel-insecure", c.Zitadel.Insecure, "Connect to zitadel without TLS.")
	fs.StringVar(&c.Zitadel.KeyPath, "zitadel-key-path", c.Zitadel.KeyPath, "The path to the zitadel service user key file.")
	fs.StringVar(&c.LDAP.URL, "ldap-url", c.LDAP.URL, "The LDAP server URL.")
	fs.StringVar(&c.LDAP.BaseDN, "ldap-base-dn", c.LDAP.BaseDN, "The DN users are stored under.")
	fs.StringVar(&c.LDAP.BindDN, "ldap-bind-dn", c.LDAP.BindDN, "The DN to bind as.")
	fs.Uint32Var(&c.Zitadel.PageSize, "zitadel-page-size", c.Zitadel.PageSize, "The number of users requested per zitadel list call.")
	fs.Uint32Var(&c.LDAP.PageSize, "ldap-page-size", c.LDAP.PageSize, "The paged results size of LDAP user searches.")
	fs.StringVar(&c.PushgatewayURL, "pushgateway-url", c.PushgatewayURL, "Push metrics to this Pushgateway after each command.")
	fs.StringVar(&c.PushJob, "pushgateway-job", c.PushJob, "The job name metrics are pushed under.")
}

// Validate reports settings that cannot work together.
func (c *Config) Validate() error {
	var errs []error

	if c.SystemNamespace == "" {
		errs = append(errs, errors.New("system namespace must be set"))
	}
	if c.DefaultClusterRole == "" {
		errs = append(errs, errors.New("default cluster role must be set"))
	}
	if c.TokenTimeout <= 0 {
		errs = append(errs, fmt.Errorf("token timeout must be positive, got %s", c.TokenTimeout))
	}

	switch c.IdentityProvider {
	case ProviderZitadel:
		if c.Zitadel.Domain == "" || c.Zitadel.KeyPath == "" {
			errs = append(errs, errors.New("zitadel domain and key path must be set"))
		}
		if c.Zitadel.PageSize == 0 {
			errs = append(errs, errors.New("zitadel page size must be positive"))
		}
	case ProviderLDAP:
		if c.LDAP.URL == "" || c.LDAP.BaseDN == "" {
			errs = append(errs, errors.New("ldap url and base dn must be set"))
		}
		if c.LDAP.PageSize == 0 {
			errs = append(errs, errors.New("ldap page size must be positive"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown identity provider %q", c.IdentityProvider))
	}

	return errors.Join(errs...)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if val, err := strconv.Atoi(v); err == nil {
			return val
		}
	}
	return def
}
