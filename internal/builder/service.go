package builder

import (
	"strconv"

	"github.com/ia-eknorr/stoker-bundler/api/v1alpha1"
	"github.com/ia-eknorr/stoker-bundler/internal/policyxml"
	"github.com/ia-eknorr/stoker-bundler/pkg/conditions"
	"github.com/ia-eknorr/stoker-bundler/pkg/types"
)

var defaultVerbs = []string{"GET", "POST"}

// ServiceBuilder emits published services with their policy inlined.
type ServiceBuilder struct{}

func (ServiceBuilder) Name() string  { return "service" }
func (ServiceBuilder) Priority() int { return 1200 }

func (s ServiceBuilder) Build(b *v1alpha1.Bundle, mode Mode, bc *Context) ([]Record, error) {
	switch mode {
	case Environment:
		return nil, nil
	case Deployment:
	default:
		return nil, unsupported(s.Name(), mode)
	}
	var records []Record
	for _, key := range v1alpha1.SortedKeys(b.Services) {
		svc := b.Services[key]
		if excluded(svc) {
			continue
		}
		policy := b.Policies[svc.Policy]
		if policy == nil {
			return nil, conditions.Errorf(conditions.ReasonDependencyNotFound, key, "service policy %q not found", svc.Policy)
		}
		xml, err := rewritePolicy(policy, bc)
		if err != nil {
			return nil, err
		}

		el := policyxml.NewElement("Service")
		el.CreateAttr("id", svc.ID)
		detail := policyxml.AddElement(el, "ServiceDetail")
		detail.CreateAttr("id", svc.ID)
		detail.CreateAttr("folderId", folderID(svc.Folder))
		policyxml.AddText(detail, "Name", svc.Name)
		policyxml.AddText(detail, "Enabled", strconv.FormatBool(svc.IsEnabled()))

		mapping := policyxml.AddElement(policyxml.AddElement(detail, "ServiceMappings"), "HttpMapping")
		policyxml.AddText(mapping, "UrlPattern", svc.URL)
		verbs := policyxml.AddElement(mapping, "Verbs")
		list := svc.Verbs
		if len(list) == 0 {
			list = defaultVerbs
		}
		for _, v := range list {
			policyxml.AddText(verbs, "Verb", v)
		}

		props := []policyxml.Property{
			{Key: "soap", Value: false},
			{Key: "internal", Value: false},
			{Key: "wssProcessingEnabled", Value: false},
		}
		for _, p := range policyxml.StringProperties(svc.Properties) {
			props = append(props, policyxml.Property{Key: "property." + p.Key, Value: p.Value})
		}
		policyxml.AddProperties(detail, props)

		addPolicyResource(el, xml)
		records = append(records, behaviorRecord(svc, el, bc))
	}
	return records, nil
}

// ScheduledTaskBuilder emits scheduled tasks.
type ScheduledTaskBuilder struct{}

func (ScheduledTaskBuilder) Name() string  { return "scheduled-task" }
func (ScheduledTaskBuilder) Priority() int { return 1300 }

func (st ScheduledTaskBuilder) Build(b *v1alpha1.Bundle, mode Mode, bc *Context) ([]Record, error) {
	switch mode {
	case Environment:
		return nil, nil
	case Deployment:
	default:
		return nil, unsupported(st.Name(), mode)
	}
	var records []Record
	for _, key := range v1alpha1.SortedKeys(b.ScheduledTasks) {
		task := b.ScheduledTasks[key]
		if excluded(task) {
			continue
		}
		m, err := bc.Resolver.Find(key, types.EntityTypePolicy, task.Policy)
		if err != nil {
			return nil, err
		}
		el := entityElement("ScheduledTask", &task.Base)
		policyxml.AddElement(el, "PolicyReference").CreateAttr("id", m.Entity.GetBase().ID)
		policyxml.AddText(el, "OneNode", "false")
		policyxml.AddText(el, "JobType", valueOr(task.JobType, "Recurring"))
		policyxml.AddText(el, "JobStatus", valueOr(task.Status, "Scheduled"))
		if task.CronExpression != "" {
			policyxml.AddText(el, "CronExpression", task.CronExpression)
		}
		policyxml.AddText(el, "ExecuteOnCreate", strconv.FormatBool(task.ExecuteOnCreate))
		policyxml.AddProperties(el, policyxml.StringProperties(task.Properties))
		records = append(records, behaviorRecord(task, el, bc))
	}
	return records, nil
}

func valueOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
