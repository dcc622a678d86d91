package builder

import (
	"context"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/go-logr/logr"

	"github.com/ia-eknorr/stoker-bundler/api/v1alpha1"
	"github.com/ia-eknorr/stoker-bundler/internal/policyxml"
	"github.com/ia-eknorr/stoker-bundler/internal/resolver"
	"github.com/ia-eknorr/stoker-bundler/internal/rewrite"
	"github.com/ia-eknorr/stoker-bundler/pkg/conditions"
	"github.com/ia-eknorr/stoker-bundler/pkg/types"
)

const emptyPolicy = `<wsp:Policy xmlns:L7p="http://www.layer7tech.com/ws/policy" xmlns:wsp="http://schemas.xmlsoap.org/ws/2002/12/policy"><wsp:All/></wsp:Policy>`

func newContext(b *v1alpha1.Bundle) *Context {
	return &Context{
		Resolver:  resolver.New(b),
		Rewriters: rewrite.Default(),
		Usage:     &rewrite.Usage{},
		Log:       logr.Discard(),
	}
}

func withListener(port int) *v1alpha1.Bundle {
	b := &v1alpha1.Bundle{Project: v1alpha1.ProjectInfo{Name: "p"}}
	if port != 0 {
		b.ListenPorts = map[string]*v1alpha1.ListenPort{
			"custom": {Base: v1alpha1.Base{Name: "custom", ID: "0123456789abcdef0123456789abcdef"}, Protocol: "HTTP", Port: port},
		}
	}
	return b
}

func TestDefaultListeners(t *testing.T) {
	tests := []struct {
		name         string
		port         int
		mode         Mode
		wantCount    int
		wantDefaults int
	}{
		{"environment, no user listeners", 0, Environment, 2, 2},
		{"environment, custom port", 12345, Environment, 3, 2},
		{"environment, port 8443 taken", 8443, Environment, 2, 1},
		{"deployment, custom port", 12345, Deployment, 1, 0},
		{"deployment, no user listeners", 0, Deployment, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := withListener(tt.port)
			records, err := ListenPortBuilder{}.Build(b, tt.mode, newContext(b))
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			if len(records) != tt.wantCount {
				t.Fatalf("got %d records, want %d", len(records), tt.wantCount)
			}
			defaults := 0
			for _, r := range records {
				if strings.HasPrefix(r.Name, "Default ") {
					defaults++
				}
				if tt.mode == Deployment && !r.IsPlaceholder() {
					t.Errorf("deployment record %s should be a placeholder", r.Name)
				}
			}
			if defaults != tt.wantDefaults {
				t.Errorf("got %d default listeners, want %d", defaults, tt.wantDefaults)
			}
		})
	}
}

func TestDefaultListenerIDsStable(t *testing.T) {
	a, b := DefaultListenPorts(), DefaultListenPorts()
	for i := range a {
		if a[i].ID != b[i].ID || len(a[i].ID) != 32 {
			t.Errorf("default listener id %q not stable", a[i].ID)
		}
	}
}

func TestEnvironmentPlaceholderMapping(t *testing.T) {
	b := &v1alpha1.Bundle{Entities: v1alpha1.Entities{
		JdbcConnections: map[string]*v1alpha1.JdbcConnection{"db": {Base: v1alpha1.Base{Name: "db", ID: "a"}, Driver: "d", URL: "u"}},
	}}
	records, err := JdbcConnectionBuilder().Build(b, Deployment, newContext(b))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records", len(records))
	}
	r := records[0]
	if !r.IsPlaceholder() || r.Action != types.ActionNewOrExisting {
		t.Errorf("record = %+v", r)
	}
	want := []policyxml.Property{
		{Key: types.PropertyFailOnNew, Value: true},
		{Key: types.PropertyMapBy, Value: types.MapByName},
		{Key: types.PropertyMapTo, Value: "db"},
	}
	if !slices.Equal(r.Properties, want) {
		t.Errorf("properties = %+v", r.Properties)
	}

	records, err = JdbcConnectionBuilder().Build(b, Environment, newContext(b))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if records[0].IsPlaceholder() || records[0].Action != types.ActionNewOrUpdate {
		t.Errorf("environment record = %+v", records[0])
	}
}

func TestJdbcPasswordReference(t *testing.T) {
	b := &v1alpha1.Bundle{Entities: v1alpha1.Entities{
		JdbcConnections: map[string]*v1alpha1.JdbcConnection{"db": {Base: v1alpha1.Base{Name: "db"}, PasswordRef: "dbpass"}},
		StoredPasswords: map[string]*v1alpha1.StoredPassword{"dbpass": {Base: v1alpha1.Base{Name: "dbpass"}, Password: "s3cret"}},
	}}
	records, err := JdbcConnectionBuilder().Build(b, Environment, newContext(b))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	found := false
	for _, el := range records[0].Content.FindElements(".//l7:Property") {
		if el.SelectAttrValue("key", "") == "password" {
			found = true
			if got := el.ChildElements()[0].Text(); got != "${secpass.dbpass.plaintext}" {
				t.Errorf("password = %q", got)
			}
		}
	}
	if !found {
		t.Error("password property not written")
	}

	delete(b.StoredPasswords, "dbpass")
	_, err = JdbcConnectionBuilder().Build(b, Environment, newContext(b))
	if conditions.ReasonOf(err) != conditions.ReasonDependencyNotFound {
		t.Errorf("expected DependencyNotFound, got %v", err)
	}
}

type fakeEncryptor struct{}

func (fakeEncryptor) Encrypt(s string) (string, error) { return "enc:" + s, nil }

func TestStoredPasswordEncrypted(t *testing.T) {
	b := &v1alpha1.Bundle{Entities: v1alpha1.Entities{
		StoredPasswords: map[string]*v1alpha1.StoredPassword{"p": {Base: v1alpha1.Base{Name: "p"}, Password: "x"}},
	}}
	bc := newContext(b)
	bc.Secrets = fakeEncryptor{}
	records, err := StoredPasswordBuilder().Build(b, Environment, bc)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := records[0].Content.SelectElement("l7:Password").Text(); got != "enc:x" {
		t.Errorf("password = %q", got)
	}
}

func TestTrustedCertRejectsBadEncoding(t *testing.T) {
	b := &v1alpha1.Bundle{Entities: v1alpha1.Entities{
		TrustedCerts: map[string]*v1alpha1.TrustedCert{"c": {Base: v1alpha1.Base{Name: "c"}, Encoded: "!!not base64"}},
	}}
	_, err := TrustedCertBuilder().Build(b, Environment, newContext(b))
	if conditions.ReasonOf(err) != conditions.ReasonInvalidContent {
		t.Errorf("expected InvalidContent, got %v", err)
	}
}

func TestUnsupportedMode(t *testing.T) {
	b := &v1alpha1.Bundle{}
	for _, bld := range Default().Builders() {
		_, err := bld.Build(b, Mode(42), newContext(b))
		if conditions.ReasonOf(err) != conditions.ReasonUnsupportedMode {
			t.Errorf("%s: expected UnsupportedMode, got %v", bld.Name(), err)
		}
	}
}

type stubBuilder struct {
	name     string
	priority int
}

func (s stubBuilder) Name() string  { return s.name }
func (s stubBuilder) Priority() int { return s.priority }
func (s stubBuilder) Build(*v1alpha1.Bundle, Mode, *Context) ([]Record, error) {
	return []Record{{Name: s.name}}, nil
}

func TestPipelinePriorities(t *testing.T) {
	_, err := NewPipeline(stubBuilder{"a", 10}, stubBuilder{"b", 10})
	if conditions.ReasonOf(err) != conditions.ReasonDuplicatePriority {
		t.Fatalf("expected DuplicatePriority, got %v", err)
	}

	p, err := NewPipeline(stubBuilder{"late", 20}, stubBuilder{"early", 10})
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	var observed []string
	p.Observer = func(name string, _ Mode, _ time.Duration, _ []Record, _ error) { observed = append(observed, name) }
	records, err := p.Run(context.Background(), &v1alpha1.Bundle{}, Deployment, newContext(&v1alpha1.Bundle{}))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if records[0].Name != "early" || records[1].Name != "late" {
		t.Errorf("records out of priority order: %+v", records)
	}
	if !slices.Equal(observed, []string{"early", "late"}) {
		t.Errorf("observer saw %v", observed)
	}
}

func TestDefaultPipelineOrder(t *testing.T) {
	var names []string
	for _, b := range Default().Builders() {
		names = append(names, b.Name())
	}
	want := []string{
		"folder", "cluster-property", "stored-password", "trusted-cert", "identity-provider",
		"jdbc-connection", "cassandra-connection", "jms-destination", "mq-native-queue",
		"http2-client-config", "listen-port", "policy", "encass", "service", "scheduled-task",
	}
	if !slices.Equal(names, want) {
		t.Errorf("pipeline order = %v", names)
	}
}

func TestPipelineCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Default().Run(ctx, &v1alpha1.Bundle{}, Deployment, newContext(&v1alpha1.Bundle{}))
	if err == nil {
		t.Error("expected error from cancelled context")
	}
}

func annotatedBundle(anns ...v1alpha1.Annotation) *v1alpha1.Bundle {
	root := &v1alpha1.Folder{Base: v1alpha1.Base{Name: types.RootFolderName, ID: types.RootFolderID}}
	return &v1alpha1.Bundle{Entities: v1alpha1.Entities{
		Folders: map[string]*v1alpha1.Folder{"": root},
		Policies: map[string]*v1alpha1.Policy{
			"main": {Base: v1alpha1.Base{Name: "main", ID: "0123456789abcdef0123456789abcdef", GUID: "g", Annotations: anns}, Path: "main", Folder: root, Content: emptyPolicy},
		},
	}}
}

func TestBehaviorActions(t *testing.T) {
	tests := []struct {
		name      string
		annotated bool
		anns      []v1alpha1.Annotation
		action    string
		mapByName bool
	}{
		{"plain", false, nil, types.ActionNewOrUpdate, false},
		{"annotated", true, []v1alpha1.Annotation{{Type: types.AnnotationBundle}}, types.ActionNewOrExisting, true},
		{"redeployable", true, []v1alpha1.Annotation{{Type: types.AnnotationBundle}, {Type: types.AnnotationRedeployable}}, types.ActionNewOrUpdate, true},
		{"reusable", true, []v1alpha1.Annotation{{Type: types.AnnotationReusable}}, types.ActionNewOrExisting, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := annotatedBundle(tt.anns...)
			if err := resolver.Scan(b); err != nil {
				t.Fatalf("Scan: %v", err)
			}
			bc := newContext(b)
			bc.Annotated = tt.annotated
			records, err := PolicyBuilder{}.Build(b, Deployment, bc)
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			r := records[0]
			if r.Action != tt.action {
				t.Errorf("action = %s, want %s", r.Action, tt.action)
			}
			if got := len(r.Properties) > 0; got != tt.mapByName {
				t.Errorf("mapped by name = %v, want %v", got, tt.mapByName)
			}
		})
	}
}

func TestFolderRecords(t *testing.T) {
	root := &v1alpha1.Folder{Base: v1alpha1.Base{Name: types.RootFolderName, ID: types.RootFolderID}}
	sub := &v1alpha1.Folder{Base: v1alpha1.Base{Name: "sub", ID: "0123456789abcdef0123456789abcdef"}, Path: "sub", Parent: root}
	b := &v1alpha1.Bundle{Entities: v1alpha1.Entities{Folders: map[string]*v1alpha1.Folder{"": root, "sub": sub}}}
	records, err := FolderBuilder{}.Build(b, Deployment, newContext(b))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(records) != 2 || records[0].ID != types.RootFolderID {
		t.Fatalf("records = %+v", records)
	}
	if records[1].Content.SelectAttrValue("folderId", "") != types.RootFolderID {
		t.Error("sub folder should point at the root")
	}
	if !slices.Contains(records[1].Properties, policyxml.Property{Key: types.PropertyMapBy, Value: types.MapByPath}) {
		t.Errorf("sub folder should map by path: %+v", records[1].Properties)
	}
}

func TestServiceInlinesRewrittenPolicy(t *testing.T) {
	b := annotatedBundle()
	b.Policies["lib"] = &v1alpha1.Policy{Base: v1alpha1.Base{Name: "lib", GUID: "lib-guid"}, Path: "lib", Content: emptyPolicy}
	b.Policies["main"].Content = `<wsp:Policy xmlns:L7p="http://www.layer7tech.com/ws/policy" xmlns:wsp="http://schemas.xmlsoap.org/ws/2002/12/policy"><wsp:All><L7p:Include><L7p:PolicyPath stringValue="lib"/></L7p:Include></wsp:All></wsp:Policy>`
	b.Services = map[string]*v1alpha1.Service{"api": {Base: v1alpha1.Base{Name: "api"}, Policy: "main", URL: "/api/*"}}
	if err := resolver.Scan(b); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	records, err := ServiceBuilder{}.Build(b, Deployment, newContext(b))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	res := records[0].Content.FindElement(".//l7:Resource")
	if res == nil || !strings.Contains(res.Text(), "lib-guid") {
		t.Error("service policy should be rewritten and inlined")
	}
	if strings.Contains(b.Policies["main"].Content, "lib-guid") {
		t.Error("rewriting modified the source policy")
	}
}
