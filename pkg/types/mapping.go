package types

// Restman namespace and prefix used in every emitted bundle document.
const (
	GatewayManagementNS     = "http://ns.l7tech.com/2010/04/gateway-management"
	GatewayManagementPrefix = "l7"
)

// Mapping actions understood by the gateway import.
const (
	// ActionNewOrExisting uses the entity on the gateway if it exists, creating it otherwise.
	ActionNewOrExisting = "NewOrExisting"

	// ActionNewOrUpdate creates the entity or overwrites the existing one.
	ActionNewOrUpdate = "NewOrUpdate"

	// ActionAlwaysCreateNew always creates a new entity.
	ActionAlwaysCreateNew = "AlwaysCreateNew"

	// ActionIgnore skips the entity.
	ActionIgnore = "Ignore"

	// ActionDelete removes the entity from the gateway.
	ActionDelete = "Delete"
)

// Mapping property keys.
const (
	PropertyFailOnNew = "FailOnNew"
	PropertyMapBy     = "MapBy"
	PropertyMapTo     = "MapTo"
)

// MapBy values.
const (
	MapByName = "name"
	MapByPath = "path"
)

// Entity type names as they appear in references and mappings.
const (
	EntityTypeFolder              = "FOLDER"
	EntityTypePolicy              = "POLICY"
	EntityTypeService             = "SERVICE"
	EntityTypeEncass              = "ENCAPSULATED_ASSERTION"
	EntityTypeClusterProperty     = "CLUSTER_PROPERTY"
	EntityTypeStoredPassword      = "SECURE_PASSWORD"
	EntityTypeTrustedCert         = "TRUSTED_CERT"
	EntityTypeIdentityProvider    = "ID_PROVIDER_CONFIG"
	EntityTypeJdbcConnection      = "JDBC_CONNECTION"
	EntityTypeCassandraConnection = "CASSANDRA_CONFIGURATION"
	EntityTypeJmsDestination      = "JMS_ENDPOINT"
	EntityTypeMqNativeQueue       = "SSG_ACTIVE_CONNECTOR"
	EntityTypeHttp2ClientConfig   = "GENERIC"
	EntityTypeListenPort          = "SSG_CONNECTOR"
	EntityTypeScheduledTask       = "SCHEDULED_TASK"

	// BundleTypePlain is the metadata type of a bundle built from a whole project.
	BundleTypePlain = "BUNDLE"
)

// Well-known gateway identifiers.
const (
	// RootFolderID is the goid of the gateway's root folder.
	RootFolderID = "0000000000000000ffffffffffffec76"

	// RootFolderName is the display name of the root folder.
	RootFolderName = "Root Node"

	// InternalIdentityProviderID is the goid of the built-in identity provider.
	InternalIdentityProviderID = "0000000000000000fffffffffffffffe"

	// InternalIdentityProviderName is the display name of the built-in identity provider.
	InternalIdentityProviderName = "Internal Identity Provider"

	// MissingEncassGUID is written into an encapsulated assertion that may
	// no-op when its config cannot be found.
	MissingEncassGUID = "00000000-0000-0000-0000-000000000000"
)
