package builder

import (
	"encoding/hex"
	"strconv"

	"github.com/beevik/etree"
	"github.com/google/uuid"

	"github.com/ia-eknorr/stoker-bundler/api/v1alpha1"
	"github.com/ia-eknorr/stoker-bundler/internal/policyxml"
	"github.com/ia-eknorr/stoker-bundler/pkg/types"
)

// Listener features enabled on the default listeners.
var defaultFeatures = []string{
	"Published service message input",
	"Administrative access",
	"Browser-based administration",
	"Built-in services",
}

// DefaultListenPorts returns the listeners every gateway ships with.
func DefaultListenPorts() []*v1alpha1.ListenPort {
	return []*v1alpha1.ListenPort{
		defaultListener("Default HTTP (8080)", "HTTP", 8080, nil),
		defaultListener("Default HTTPS (8443)", "HTTPS", 8443, &v1alpha1.ListenPortTLS{
			ClientAuthentication: "Optional",
			Versions:             []string{"TLSv1.2", "TLSv1.3"},
		}),
	}
}

func defaultListener(name, protocol string, port int, tls *v1alpha1.ListenPortTLS) *v1alpha1.ListenPort {
	id := uuid.NewSHA1(uuid.NameSpaceOID, []byte(name))
	return &v1alpha1.ListenPort{
		Base:     v1alpha1.Base{Name: name, ID: hex.EncodeToString(id[:])},
		Protocol: protocol,
		Port:     port,
		Features: defaultFeatures,
		TLS:      tls,
	}
}

// ListenPortBuilder emits listeners. Environment builds also carry the
// default listeners unless a user listener already takes their port.
type ListenPortBuilder struct{}

func (ListenPortBuilder) Name() string  { return "listen-port" }
func (ListenPortBuilder) Priority() int { return 900 }

func (l ListenPortBuilder) Build(b *v1alpha1.Bundle, mode Mode, bc *Context) ([]Record, error) {
	if mode != Deployment && mode != Environment {
		return nil, unsupported(l.Name(), mode)
	}
	var ports []*v1alpha1.ListenPort
	used := make(map[int]bool)
	for _, key := range v1alpha1.SortedKeys(b.ListenPorts) {
		lp := b.ListenPorts[key]
		if excluded(lp) {
			continue
		}
		ports = append(ports, lp)
		used[lp.Port] = true
	}
	if mode == Environment {
		var defaults []*v1alpha1.ListenPort
		for _, lp := range DefaultListenPorts() {
			if used[lp.Port] {
				bc.Log.V(1).Info("skipping default listener, port is taken", "listener", lp.Name, "port", lp.Port)
				continue
			}
			defaults = append(defaults, lp)
		}
		ports = append(defaults, ports...)
	}

	records := make([]Record, 0, len(ports))
	for _, lp := range ports {
		rec, err := environmentRecord(lp, mode, func() (*etree.Element, error) { return listenPortElement(lp, bc) })
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func listenPortElement(lp *v1alpha1.ListenPort, bc *Context) (*etree.Element, error) {
	el := entityElement("ListenPort", &lp.Base)
	policyxml.AddText(el, "Enabled", "true")
	policyxml.AddText(el, "Protocol", lp.Protocol)
	policyxml.AddText(el, "Port", strconv.Itoa(lp.Port))
	if len(lp.Features) > 0 {
		features := policyxml.AddElement(el, "EnabledFeatures")
		for _, f := range lp.Features {
			policyxml.AddText(features, "StringValue", f)
		}
	}
	if lp.TargetService != "" {
		m, err := bc.Resolver.Find(lp.Name, types.EntityTypeService, lp.TargetService)
		if err != nil {
			return nil, err
		}
		policyxml.AddElement(el, "TargetServiceReference").CreateAttr("id", m.Entity.GetBase().ID)
	}
	if lp.TLS != nil {
		tls := policyxml.AddElement(el, "TlsSettings")
		if lp.TLS.ClientAuthentication != "" {
			policyxml.AddText(tls, "ClientAuthentication", lp.TLS.ClientAuthentication)
		}
		addStrings(tls, "EnabledVersions", lp.TLS.Versions)
		addStrings(tls, "EnabledCipherSuites", lp.TLS.CipherSuites)
		if lp.TLS.PrivateKey != "" {
			policyxml.AddElement(tls, "PrivateKeyReference").CreateAttr("id", lp.TLS.PrivateKey)
		}
	}
	policyxml.AddProperties(el, policyxml.StringProperties(lp.Properties))
	return el, nil
}

func addStrings(parent *etree.Element, tag string, values []string) {
	if len(values) == 0 {
		return
	}
	list := policyxml.AddElement(parent, tag)
	for _, v := range values {
		policyxml.AddText(list, "StringValue", v)
	}
}
