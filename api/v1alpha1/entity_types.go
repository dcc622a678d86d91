package v1alpha1

import (
	"github.com/ia-eknorr/stoker-bundler/pkg/types"
)

// Entity is implemented by every gateway entity kind in a Bundle.
type Entity interface {
	// GetBase returns the identity fields shared by all entities.
	GetBase() *Base
	// EntityType returns the restman type name, e.g. POLICY.
	EntityType() string
}

// Base carries the identity every entity has. Display names may be rewritten
// during a build; entities stay keyed by their manifest key.
type Base struct {
	// +optional
	ID string `json:"id,omitempty"`
	// +optional
	GUID string `json:"guid,omitempty"`
	// +optional
	Name string `json:"name,omitempty"`
	// +optional
	Annotations Annotations `json:"annotations,omitempty"`

	annotated *AnnotatedEntity
}

func (b *Base) GetBase() *Base { return b }

// Annotated returns the entity's annotated view, deriving it on first use.
func (b *Base) Annotated() *AnnotatedEntity {
	if b.annotated == nil {
		b.annotated = NewAnnotatedEntity(b.Annotations)
	}
	return b.annotated
}

// Dependency is a reference from one policy to another policy or encass.
type Dependency struct {
	Type string
	Name string
}

// ============================================================
// Behavioral entities
// ============================================================

// Folder is a node in the folder tree. The root folder has an empty path.
type Folder struct {
	Base `json:",inline"`

	Path   string  `json:"-"`
	Parent *Folder `json:"-"`
}

func (*Folder) EntityType() string { return types.EntityTypeFolder }

// IsRoot reports whether f is the gateway root folder.
func (f *Folder) IsRoot() bool { return f.Path == "" }

// Policy is a policy document keyed by its folder path.
type Policy struct {
	Base `json:",inline"`

	// content is the policy XML.
	// +optional
	Content string `json:"content,omitempty"`

	// contentFile is a path to the policy XML, relative to the manifest.
	// +optional
	ContentFile string `json:"contentFile,omitempty"`

	// policyType defaults to Include.
	// +kubebuilder:validation:Enum=Include;Internal;Global;Service-Operation
	// +optional
	PolicyType string `json:"policyType,omitempty"`

	// tag is the policy tag for global and internal policies.
	// +optional
	Tag string `json:"tag,omitempty"`

	Path         string       `json:"-"`
	Folder       *Folder      `json:"-"`
	Dependencies []Dependency `json:"-"`
}

func (*Policy) EntityType() string { return types.EntityTypePolicy }

// Service is a published service whose policy is a Policy path.
type Service struct {
	Base `json:",inline"`

	// policy is the path of the service policy.
	Policy string `json:"policy"`

	// url is the resolution path, e.g. /orders/*.
	URL string `json:"url"`

	// verbs defaults to GET and POST.
	// +optional
	Verbs []string `json:"verbs,omitempty"`

	// +optional
	Enabled *bool `json:"enabled,omitempty"`

	// +optional
	Properties map[string]string `json:"properties,omitempty"`

	Path   string  `json:"-"`
	Folder *Folder `json:"-"`
}

func (*Service) EntityType() string { return types.EntityTypeService }

// IsEnabled defaults to true.
func (s *Service) IsEnabled() bool { return s.Enabled == nil || *s.Enabled }

// Encass is an encapsulated assertion config backed by a policy.
type Encass struct {
	Base `json:",inline"`

	// policy is the path of the backing policy.
	Policy string `json:"policy"`

	// +optional
	Arguments []EncassArgument `json:"arguments,omitempty"`

	// +optional
	Results []EncassResult `json:"results,omitempty"`

	// +optional
	Properties map[string]string `json:"properties,omitempty"`
}

func (*Encass) EntityType() string { return types.EntityTypeEncass }

// EncassArgument is one input of an encapsulated assertion.
type EncassArgument struct {
	Name            string `json:"name"`
	Type            string `json:"type"`
	RequireExplicit bool   `json:"requireExplicit,omitempty"`
	GuiPrompt       bool   `json:"guiPrompt,omitempty"`
	GuiLabel        string `json:"guiLabel,omitempty"`
}

// EncassResult is one output of an encapsulated assertion.
type EncassResult struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// ScheduledTask runs a policy on a schedule.
type ScheduledTask struct {
	Base `json:",inline"`

	Policy string `json:"policy"`

	// +kubebuilder:validation:Enum=Recurring;One time
	// +optional
	JobType string `json:"jobType,omitempty"`

	// +optional
	CronExpression string `json:"cronExpression,omitempty"`

	// +optional
	ExecuteOnCreate bool `json:"executeOnCreate,omitempty"`

	// +optional
	Status string `json:"status,omitempty"`

	// +optional
	Properties map[string]string `json:"properties,omitempty"`
}

func (*ScheduledTask) EntityType() string { return types.EntityTypeScheduledTask }

// ============================================================
// Environment entities
// ============================================================

// ClusterProperty is a gateway-wide name/value setting.
type ClusterProperty struct {
	Base `json:",inline"`

	Value string `json:"value"`
}

func (*ClusterProperty) EntityType() string { return types.EntityTypeClusterProperty }

// StoredPassword is a secure password referenced as ${secpass.<name>.plaintext}.
type StoredPassword struct {
	Base `json:",inline"`

	Password string `json:"password"`

	// +kubebuilder:validation:Enum=Password;PEM Private Key
	// +optional
	Type string `json:"type,omitempty"`

	// +optional
	Description string `json:"description,omitempty"`

	// +optional
	UsageFromVariable bool `json:"usageFromVariable,omitempty"`
}

func (*StoredPassword) EntityType() string { return types.EntityTypeStoredPassword }

// TrustedCert is a certificate trusted by the gateway.
type TrustedCert struct {
	Base `json:",inline"`

	// encoded is the base64 DER certificate.
	Encoded string `json:"encoded"`

	// +optional
	Properties map[string]string `json:"properties,omitempty"`
}

func (*TrustedCert) EntityType() string { return types.EntityTypeTrustedCert }

// IdentityProvider is an LDAP, federated, or policy-backed identity provider.
type IdentityProvider struct {
	Base `json:",inline"`

	// +kubebuilder:validation:Enum=LDAP;BIND_ONLY_LDAP;FEDERATED;POLICY_BACKED
	Type string `json:"type"`

	// +optional
	Properties map[string]string `json:"properties,omitempty"`

	// trustedCerts names the certificates a federated provider trusts.
	// +optional
	TrustedCerts []string `json:"trustedCerts,omitempty"`
}

func (*IdentityProvider) EntityType() string { return types.EntityTypeIdentityProvider }

// JdbcConnection is a pooled JDBC connection.
type JdbcConnection struct {
	Base `json:",inline"`

	Driver string `json:"driver"`
	URL    string `json:"url"`
	User   string `json:"user,omitempty"`

	// passwordRef names a StoredPassword.
	// +optional
	PasswordRef string `json:"passwordRef,omitempty"`

	// +optional
	MinPoolSize int `json:"minPoolSize,omitempty"`
	// +optional
	MaxPoolSize int `json:"maxPoolSize,omitempty"`

	// +optional
	Properties map[string]string `json:"properties,omitempty"`
}

func (*JdbcConnection) EntityType() string { return types.EntityTypeJdbcConnection }

// CassandraConnection is a Cassandra cluster connection.
type CassandraConnection struct {
	Base `json:",inline"`

	Keyspace      string `json:"keyspace"`
	ContactPoints string `json:"contactPoints"`
	Port          int    `json:"port,omitempty"`
	Username      string `json:"username,omitempty"`

	// passwordRef names a StoredPassword.
	// +optional
	PasswordRef string `json:"passwordRef,omitempty"`

	// +optional
	Compression string `json:"compression,omitempty"`
	// +optional
	TLS bool `json:"tls,omitempty"`

	// +optional
	Properties map[string]string `json:"properties,omitempty"`
}

func (*CassandraConnection) EntityType() string { return types.EntityTypeCassandraConnection }

// JmsDestination is a JMS queue or topic endpoint.
type JmsDestination struct {
	Base `json:",inline"`

	// +optional
	ProviderType string `json:"providerType,omitempty"`

	// +kubebuilder:validation:Enum=Queue;Topic
	DestinationType string `json:"destinationType"`

	DestinationName   string `json:"destinationName"`
	JndiURL           string `json:"jndiUrl"`
	InitialContext    string `json:"initialContextFactory,omitempty"`
	ConnectionFactory string `json:"connectionFactory"`

	// +optional
	Inbound bool `json:"inbound,omitempty"`

	// +optional
	Properties map[string]string `json:"properties,omitempty"`
}

func (*JmsDestination) EntityType() string { return types.EntityTypeJmsDestination }

// MqNativeQueue is an IBM MQ native active connector.
type MqNativeQueue struct {
	Base `json:",inline"`

	Host         string `json:"host"`
	Port         int    `json:"port"`
	QueueManager string `json:"queueManager"`
	Channel      string `json:"channel"`
	QueueName    string `json:"queueName"`

	// +optional
	Inbound bool `json:"inbound,omitempty"`

	// +optional
	Properties map[string]string `json:"properties,omitempty"`
}

func (*MqNativeQueue) EntityType() string { return types.EntityTypeMqNativeQueue }

// Http2ClientConfig is an HTTP/2 routing client configuration.
type Http2ClientConfig struct {
	Base `json:",inline"`

	// +optional
	Properties map[string]string `json:"properties,omitempty"`
}

func (*Http2ClientConfig) EntityType() string { return types.EntityTypeHttp2ClientConfig }

// ListenPort is a gateway listener.
type ListenPort struct {
	Base `json:",inline"`

	// +kubebuilder:validation:Enum=HTTP;HTTPS
	Protocol string `json:"protocol"`

	// +kubebuilder:validation:Minimum=1
	// +kubebuilder:validation:Maximum=65535
	Port int `json:"port"`

	// +optional
	Features []string `json:"features,omitempty"`

	// +optional
	TLS *ListenPortTLS `json:"tls,omitempty"`

	// targetService is the path of a service this listener publishes exclusively.
	// +optional
	TargetService string `json:"targetService,omitempty"`

	// +optional
	Properties map[string]string `json:"properties,omitempty"`
}

func (*ListenPort) EntityType() string { return types.EntityTypeListenPort }

// ListenPortTLS configures an HTTPS listener.
type ListenPortTLS struct {
	// +kubebuilder:validation:Enum=None;Optional;Required
	// +optional
	ClientAuthentication string `json:"clientAuthentication,omitempty"`

	// +optional
	Versions []string `json:"versions,omitempty"`

	// +optional
	CipherSuites []string `json:"cipherSuites,omitempty"`

	// +optional
	PrivateKey string `json:"privateKey,omitempty"`
}

// MissingEntity is an entity excluded from the build but known by reference.
// References to it resolve to its recorded identity.
type MissingEntity struct {
	Base `json:",inline"`

	Type string `json:"type"`
}

func (m *MissingEntity) EntityType() string { return m.Type }
