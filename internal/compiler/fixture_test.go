package compiler

import (
	"fmt"
	"strings"

	"github.com/ia-eknorr/stoker-bundler/api/v1alpha1"
	"github.com/ia-eknorr/stoker-bundler/internal/builder"
	"github.com/ia-eknorr/stoker-bundler/pkg/types"
)

const (
	policyOpen  = `<wsp:Policy xmlns:L7p="http://www.layer7tech.com/ws/policy" xmlns:wsp="http://schemas.xmlsoap.org/ws/2002/12/policy"><wsp:All>`
	policyClose = `</wsp:All></wsp:Policy>`
)

func policy(assertions ...string) string {
	return policyOpen + strings.Join(assertions, "") + policyClose
}

func include(path string) string {
	return fmt.Sprintf(`<L7p:Include><L7p:PolicyPath stringValue=%q/></L7p:Include>`, path)
}

func encass(name string, noOp bool) string {
	extra := ""
	if noOp {
		extra = `<L7p:NoOpIfConfigMissing booleanValue="true"/>`
	}
	return fmt.Sprintf(`<L7p:Encapsulated><L7p:EncapsulatedAssertionConfigName stringValue=%q/>%s</L7p:Encapsulated>`, name, extra)
}

func jdbcQuery(connection string) string {
	return fmt.Sprintf(`<L7p:JdbcQuery><L7p:ConnectionName stringValue=%q/><L7p:SqlQuery stringValue="select 1"/></L7p:JdbcQuery>`, connection)
}

func setEnv(variable string) string {
	return fmt.Sprintf(`<L7p:SetVariable><L7p:VariableToSet stringValue=%q/></L7p:SetVariable>`, variable)
}

// newProject returns a small project:
//
//	apis/orders   includes apis/shared, calls Validate, sets ENV.limit
//	apis/shared   queries the "db" connection
//	apis/validate backs the Validate encass
func newProject() *v1alpha1.Bundle {
	root := &v1alpha1.Folder{Base: v1alpha1.Base{Name: types.RootFolderName}}
	apis := &v1alpha1.Folder{Base: v1alpha1.Base{Name: "apis"}, Path: "apis", Parent: root}

	b := &v1alpha1.Bundle{
		Project:     v1alpha1.ProjectInfo{Name: "orders-api", GroupName: "com.example", Version: "1.0"},
		Environment: map[string]string{"orders.limit": "10"},
	}
	b.Folders = map[string]*v1alpha1.Folder{"": root, "apis": apis}
	b.Policies = map[string]*v1alpha1.Policy{}
	addPolicy(b, "apis/orders", policy(include("apis/shared"), encass("Validate", false), setEnv("ENV.limit")))
	addPolicy(b, "apis/shared", policy(jdbcQuery("db")))
	addPolicy(b, "apis/validate", policy())
	b.EncapsulatedAssertions = map[string]*v1alpha1.Encass{
		"Validate": {Base: v1alpha1.Base{Name: "Validate"}, Policy: "apis/validate"},
	}
	b.JdbcConnections = map[string]*v1alpha1.JdbcConnection{
		"db": {Base: v1alpha1.Base{Name: "db"}, Driver: "org.mariadb.jdbc.Driver", URL: "jdbc:mariadb://db:3306/orders", User: "app"},
	}
	return b
}

func addPolicy(b *v1alpha1.Bundle, path, content string) *v1alpha1.Policy {
	p := &v1alpha1.Policy{
		Base:    v1alpha1.Base{Name: v1alpha1.BaseName(path)},
		Path:    path,
		Content: content,
		Folder:  b.Folders[v1alpha1.FolderPath(path)],
	}
	b.Policies[path] = p
	return p
}

// dependencyWithEncass returns a dependency project providing a reusable
// encass backed by the reusable policy lib/<name>.
func dependencyWithEncass(project, name string) *v1alpha1.Bundle {
	reusable := v1alpha1.Annotations{{Type: types.AnnotationReusableEntity}}
	dep := &v1alpha1.Bundle{Project: v1alpha1.ProjectInfo{Name: project}}
	dep.Policies = map[string]*v1alpha1.Policy{
		"lib/" + name: {Base: v1alpha1.Base{Name: name, Annotations: reusable}, Path: "lib/" + name, Content: policy()},
	}
	dep.EncapsulatedAssertions = map[string]*v1alpha1.Encass{
		name: {Base: v1alpha1.Base{Name: name, Annotations: reusable}, Policy: "lib/" + name},
	}
	return dep
}

// annotatedDependency returns a dependency project with one annotated
// policy lib/<root> per root, each querying the "ledger" connection.
func annotatedDependency(roots ...string) *v1alpha1.Bundle {
	dep := &v1alpha1.Bundle{Project: v1alpha1.ProjectInfo{Name: "lib", GroupName: "g", Version: "1.0"}}
	dep.Policies = map[string]*v1alpha1.Policy{}
	for _, name := range roots {
		dep.Policies["lib/"+name] = &v1alpha1.Policy{
			Base:    v1alpha1.Base{Name: name, Annotations: v1alpha1.Annotations{{Type: types.AnnotationBundle}}},
			Path:    "lib/" + name,
			Content: policy(jdbcQuery("ledger")),
		}
	}
	dep.JdbcConnections = map[string]*v1alpha1.JdbcConnection{
		"ledger": {Base: v1alpha1.Base{Name: "ledger"}, Driver: "org.mariadb.jdbc.Driver", URL: "jdbc:mariadb://ledger:3306/ledger"},
	}
	return dep
}

// typeNames lists records as "TYPE name".
func typeNames(records []builder.Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Type+" "+r.Name)
	}
	return out
}

func ofType(records []builder.Record, entityType string) []builder.Record {
	var out []builder.Record
	for _, r := range records {
		if r.Type == entityType {
			out = append(out, r)
		}
	}
	return out
}

func byName(results []*Result, name string) *Result {
	for _, r := range results {
		if r.Name == name {
			return r
		}
	}
	return nil
}
