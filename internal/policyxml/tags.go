package policyxml

// Policy document namespaces.
const (
	PolicyNS     = "http://www.layer7tech.com/ws/policy"
	PolicyPrefix = "L7p"
	WSPNS        = "http://schemas.xmlsoap.org/ws/2002/12/policy"
	WSPPrefix    = "wsp"
)

// Attributes carrying assertion property values.
const (
	AttrStringValue  = "stringValue"
	AttrGoidValue    = "goidValue"
	AttrBooleanValue = "booleanValue"
)

// Policy include
const (
	TagInclude    = "L7p:Include"
	TagPolicyPath = "L7p:PolicyPath"
	TagPolicyGUID = "L7p:PolicyGuid"
	TagPolicyName = "L7p:PolicyName"
)

// Encapsulated assertion
const (
	TagEncapsulated        = "L7p:Encapsulated"
	TagEncassName          = "L7p:EncapsulatedAssertionConfigName"
	TagEncassGUID          = "L7p:EncapsulatedAssertionConfigGuid"
	TagNoOpIfConfigMissing = "L7p:NoOpIfConfigMissing"
)

// Set variable and hardcoded response
const (
	TagSetVariable        = "L7p:SetVariable"
	TagVariableToSet      = "L7p:VariableToSet"
	TagExpression         = "L7p:Expression"
	TagBase64Expression   = "L7p:Base64Expression"
	TagHardcodedResponse  = "L7p:HardcodedResponse"
	TagResponseBody       = "L7p:ResponseBody"
	TagBase64ResponseBody = "L7p:Base64ResponseBody"
)

// Connection references
const (
	TagJdbcQuery              = "L7p:JdbcQuery"
	TagCassandraQuery         = "L7p:CassandraQuery"
	TagConnectionName         = "L7p:ConnectionName"
	TagJmsRouting             = "L7p:JmsRoutingAssertion"
	TagEndpointName           = "L7p:EndpointName"
	TagEndpointOid            = "L7p:EndpointOid"
	TagMqNativeRouting        = "L7p:MqNativeRouting"
	TagSsgActiveConnectorName = "L7p:SsgActiveConnectorName"
	TagSsgActiveConnectorGoid = "L7p:SsgActiveConnectorGoid"
	TagHttp2Routing           = "L7p:Http2Routing"
	TagHttp2ClientConfigName  = "L7p:Http2ClientConfigName"
	TagHttp2ClientConfigGoid  = "L7p:Http2ClientConfigGoid"
	TagHttpRouting            = "L7p:HttpRoutingAssertion"
)

// Identity and certificate references
const (
	TagAuthentication        = "L7p:Authentication"
	TagIdentityProviderName  = "L7p:IdentityProviderName"
	TagIdentityProviderOid   = "L7p:IdentityProviderOid"
	TagNonSoapVerifyElement  = "L7p:NonSoapVerifyElement"
	TagVerifyCertificateName = "L7p:VerifyCertificateName"
	TagVerifyCertificateGoid = "L7p:VerifyCertificateGoid"
)

// RoutingTags are assertions that send a message to a backend.
var RoutingTags = []string{TagHttpRouting, TagHttp2Routing, TagJmsRouting, TagMqNativeRouting}
