package compiler

import (
	"context"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ia-eknorr/stoker-bundler/api/v1alpha1"
	"github.com/ia-eknorr/stoker-bundler/internal/builder"
	"github.com/ia-eknorr/stoker-bundler/pkg/conditions"
	"github.com/ia-eknorr/stoker-bundler/pkg/types"
)

const (
	fixedID   = "0123456789abcdef0123456789abcdef"
	fixedGUID = "5f1c3a52-8a5e-4a8f-9f0e-2b1d7c4e6a10"
)

var _ = Describe("Compiler", func() {
	var (
		ctx context.Context
		c   *Compiler
	)

	BeforeEach(func() {
		ctx = context.Background()
		c = New()
	})

	Context("Plain project", func() {
		It("should produce one bundle named after the project", func() {
			results, err := c.Compile(ctx, newProject(), Options{})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))

			res := results[0]
			Expect(res.Name).To(Equal("orders-api"))
			Expect(res.Version).To(Equal("1.0"))
			Expect(res.Annotated).To(BeFalse())
			Expect(res.Files()).To(HaveKey("orders-api-1.0.bundle"))
			Expect(res.Files()).To(HaveKey("orders-api-1.0.environment.bundle"))
			Expect(res.Files()).To(HaveKey("orders-api-1.0.metadata.yml"))
			Expect(string(res.Deployment)).To(ContainSubstring("<l7:Bundle"))
		})

		It("should emit included policies before the policies including them", func() {
			results, err := c.Compile(ctx, newProject(), Options{})
			Expect(err).NotTo(HaveOccurred())

			policies := ofType(results[0].DeploymentRecords, types.EntityTypePolicy)
			Expect(typeNames(policies)).To(Equal([]string{"POLICY shared", "POLICY validate", "POLICY orders"}))
		})

		It("should emit environment entities as placeholders in the deployment bundle", func() {
			results, err := c.Compile(ctx, newProject(), Options{})
			Expect(err).NotTo(HaveOccurred())

			jdbc := ofType(results[0].DeploymentRecords, types.EntityTypeJdbcConnection)
			Expect(jdbc).To(HaveLen(1))
			Expect(jdbc[0].IsPlaceholder()).To(BeTrue())
			Expect(jdbc[0].Action).To(Equal(types.ActionNewOrExisting))

			full := ofType(results[0].EnvironmentRecords, types.EntityTypeJdbcConnection)
			Expect(full).To(HaveLen(1))
			Expect(full[0].IsPlaceholder()).To(BeFalse())
			Expect(full[0].ID).To(Equal(jdbc[0].ID))
		})

		It("should turn environment values into ENV cluster properties", func() {
			results, err := c.Compile(ctx, newProject(), Options{})
			Expect(err).NotTo(HaveOccurred())

			props := ofType(results[0].EnvironmentRecords, types.EntityTypeClusterProperty)
			Expect(typeNames(props)).To(ConsistOf("CLUSTER_PROPERTY ENV.orders.limit"))
			Expect(results[0].BundleMetadata.EnvironmentEntities).To(ContainElement(
				HaveField("Name", "ENV.orders.limit")))
		})

		It("should keep the same mapping set across compilations", func() {
			first, err := c.Compile(ctx, newProject(), Options{})
			Expect(err).NotTo(HaveOccurred())
			second, err := c.Compile(ctx, newProject(), Options{})
			Expect(err).NotTo(HaveOccurred())

			Expect(typeNames(second[0].DeploymentRecords)).To(Equal(typeNames(first[0].DeploymentRecords)))
			Expect(typeNames(second[0].EnvironmentRecords)).To(Equal(typeNames(first[0].EnvironmentRecords)))
		})

		It("should add the default listeners only to the environment bundle", func() {
			results, err := c.Compile(ctx, &v1alpha1.Bundle{Project: v1alpha1.ProjectInfo{Name: "empty"}}, Options{})
			Expect(err).NotTo(HaveOccurred())

			Expect(ofType(results[0].DeploymentRecords, types.EntityTypeListenPort)).To(BeEmpty())
			Expect(typeNames(ofType(results[0].EnvironmentRecords, types.EntityTypeListenPort))).To(Equal([]string{
				"SSG_CONNECTOR Default HTTP (8080)",
				"SSG_CONNECTOR Default HTTPS (8443)",
			}))
		})

		It("should merge environment records into the deployment bundle when asked", func() {
			results, err := c.Compile(ctx, newProject(), Options{IncludeEnvironment: true})
			Expect(err).NotTo(HaveOccurred())

			res := results[0]
			Expect(res.BundleMetadata.EnvironmentIncluded).To(BeTrue())
			jdbc := ofType(res.DeploymentRecords, types.EntityTypeJdbcConnection)
			Expect(jdbc).To(HaveLen(1))
			Expect(jdbc[0].IsPlaceholder()).To(BeFalse())
			Expect(ofType(res.DeploymentRecords, types.EntityTypeListenPort)).To(HaveLen(2))
			Expect(ofType(res.DeploymentRecords, types.EntityTypePolicy)).To(HaveLen(3))
		})

		It("should not modify the input bundle", func() {
			b := newProject()
			_, err := c.Compile(ctx, b, Options{})
			Expect(err).NotTo(HaveOccurred())

			Expect(b.Policies["apis/orders"].ID).To(BeEmpty())
			Expect(b.Policies["apis/orders"].Content).To(ContainSubstring("PolicyPath"))
			Expect(b.ClusterProperties).To(BeEmpty())
		})

		It("should stamp the source commit and apply metadata overrides", func() {
			results, err := c.Compile(ctx, newProject(), Options{
				SourceCommit:      "abc123",
				MetadataOverrides: map[string]string{"description": "orders gateway"},
			})
			Expect(err).NotTo(HaveOccurred())

			md := string(results[0].Metadata)
			Expect(md).To(ContainSubstring("sourceCommit: abc123"))
			Expect(md).To(ContainSubstring("description: orders gateway"))
		})
	})

	Context("Annotated project", func() {
		annotate := func(b *v1alpha1.Bundle) {
			b.Policies["apis/orders"].Annotations = v1alpha1.Annotations{{Type: types.AnnotationBundle}}
			b.EncapsulatedAssertions["Validate"].Annotations = v1alpha1.Annotations{{Type: types.AnnotationBundle}}
		}

		It("should produce one bundle per annotated entity", func() {
			b := newProject()
			annotate(b)
			results, err := c.Compile(ctx, b, Options{})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))

			orders := byName(results, "orders")
			Expect(orders).NotTo(BeNil())
			Expect(orders.Annotated).To(BeTrue())
			Expect(orders.BundleMetadata.Type).To(Equal(types.EntityTypePolicy))
			Expect(ofType(orders.DeploymentRecords, types.EntityTypePolicy)).To(HaveLen(3))

			validate := byName(results, "Validate")
			Expect(validate).NotTo(BeNil())
			Expect(validate.BundleMetadata.Type).To(Equal(types.EntityTypeEncass))
			Expect(typeNames(ofType(validate.DeploymentRecords, types.EntityTypePolicy))).To(Equal([]string{
				"POLICY ::com.example.Validate::validate::1.0",
			}))
		})

		It("should namespace entity names and the references to them", func() {
			b := newProject()
			annotate(b)
			results, err := c.Compile(ctx, b, Options{})
			Expect(err).NotTo(HaveOccurred())

			orders := byName(results, "orders")
			Expect(typeNames(ofType(orders.DeploymentRecords, types.EntityTypeJdbcConnection))).To(Equal([]string{
				"JDBC_CONNECTION ::com.example.orders::db::1.0",
			}))
			Expect(string(orders.Deployment)).To(ContainSubstring("::com.example.orders::db::1.0"))

			for _, r := range orders.DeploymentRecords {
				if r.Type == types.EntityTypePolicy {
					Expect(r.Action).To(Equal(types.ActionNewOrExisting))
					Expect(r.Name).To(HavePrefix("::com.example.orders::"))
				}
			}
		})

		It("should keep ENV cluster property names", func() {
			b := newProject()
			annotate(b)
			results, err := c.Compile(ctx, b, Options{})
			Expect(err).NotTo(HaveOccurred())

			orders := byName(results, "orders")
			Expect(typeNames(ofType(orders.EnvironmentRecords, types.EntityTypeClusterProperty))).To(Equal([]string{
				"CLUSTER_PROPERTY ENV.orders.limit",
			}))
		})

		It("should preserve the identity of a reusable entity", func() {
			b := newProject()
			annotate(b)
			b.EncapsulatedAssertions["Validate"].Annotations = v1alpha1.Annotations{
				{Type: types.AnnotationBundle},
				{Type: types.AnnotationReusableEntity},
				{Type: types.AnnotationBundleHints, ID: fixedID, GUID: fixedGUID},
			}
			results, err := c.Compile(ctx, b, Options{})
			Expect(err).NotTo(HaveOccurred())

			for _, res := range results {
				enc := ofType(res.DeploymentRecords, types.EntityTypeEncass)
				Expect(enc).To(HaveLen(1))
				Expect(enc[0].ID).To(Equal(fixedID))
				Expect(enc[0].GUID).To(Equal(fixedGUID))
				Expect(enc[0].Name).To(Equal("Validate"))
			}
			Expect(string(byName(results, "orders").Deployment)).To(ContainSubstring(fixedGUID))
		})

		It("should regenerate the identity of a non-reusable entity", func() {
			b := newProject()
			annotate(b)
			b.EncapsulatedAssertions["Validate"].ID = fixedID
			b.EncapsulatedAssertions["Validate"].GUID = fixedGUID

			first, err := c.Compile(ctx, b, Options{})
			Expect(err).NotTo(HaveOccurred())
			second, err := c.Compile(ctx, b, Options{})
			Expect(err).NotTo(HaveOccurred())

			a := ofType(byName(first, "Validate").DeploymentRecords, types.EntityTypeEncass)[0]
			z := ofType(byName(second, "Validate").DeploymentRecords, types.EntityTypeEncass)[0]
			Expect(a.ID).NotTo(Equal(fixedID))
			Expect(a.GUID).NotTo(Equal(fixedGUID))
			Expect(z.ID).NotTo(Equal(a.ID))
		})

		It("should report ignored overrides", func() {
			b := newProject()
			b.EncapsulatedAssertions["Validate"].Annotations = v1alpha1.Annotations{
				{Type: types.AnnotationBundle},
				{Type: types.AnnotationReusableEntity, ID: "not-a-goid"},
			}
			c.Metrics = NewMetrics()
			results, err := c.Compile(ctx, b, Options{})
			Expect(err).NotTo(HaveOccurred())

			Expect(results[0].Overrides).To(ContainElement(HaveField("Reason", conditions.ReasonInvalidID)))
			Expect(testutil.ToFloat64(c.Metrics.IgnoredOverrides)).To(BeNumerically(">=", 1))
		})
	})

	Context("Dependencies", func() {
		It("should fail on a policy include cycle naming both policies", func() {
			b := newProject()
			addPolicy(b, "apis/a", policy(include("apis/b")))
			addPolicy(b, "apis/b", policy(include("apis/a")))

			_, err := c.Compile(ctx, b, Options{})
			Expect(err).To(HaveOccurred())
			Expect(conditions.ReasonOf(err)).To(Equal(conditions.ReasonCycleDetected))
			Expect(err.Error()).To(ContainSubstring("apis/a -> apis/b -> apis/a"))
		})

		It("should fail on an encass provided by two dependency bundles", func() {
			b := newProject()
			b.Dependencies = []*v1alpha1.Bundle{
				dependencyWithEncass("lib-one", "Audit"),
				dependencyWithEncass("lib-two", "Audit"),
			}
			addPolicy(b, "apis/audit", policy(encass("Audit", false)))

			_, err := c.Compile(ctx, b, Options{})
			Expect(err).To(HaveOccurred())
			Expect(conditions.ReasonOf(err)).To(Equal(conditions.ReasonAmbiguousDependency))
			Expect(err.Error()).To(ContainSubstring("lib-one, lib-two"))
		})

		It("should resolve an encass from a dependency bundle and report it", func() {
			b := newProject()
			b.Dependencies = []*v1alpha1.Bundle{dependencyWithEncass("lib-one", "Audit")}
			addPolicy(b, "apis/audit", policy(encass("Audit", false)))

			results, err := c.Compile(ctx, b, Options{})
			Expect(err).NotTo(HaveOccurred())

			Expect(results[0].BundleMetadata.Dependencies).To(ConsistOf(HaveField("Name", "lib-one")))
			Expect(b.Dependencies[0].EncapsulatedAssertions["Audit"].GUID).To(BeEmpty())
		})

		It("should reference dependency entities by the guids their own bundle deploys", func() {
			dep := dependencyWithEncass("lib", "Shared")
			dep.Project.GroupName = "com.example"
			depResults, err := c.Compile(ctx, dep, Options{})
			Expect(err).NotTo(HaveOccurred())
			deployed := depResults[0].DeploymentRecords
			policyGUID := ofType(deployed, types.EntityTypePolicy)[0].GUID
			encassGUID := ofType(deployed, types.EntityTypeEncass)[0].GUID

			b := newProject()
			b.Dependencies = []*v1alpha1.Bundle{dep}
			addPolicy(b, "apis/audit", policy(include("lib/Shared"), encass("Shared", false)))
			results, err := c.Compile(ctx, b, Options{})
			Expect(err).NotTo(HaveOccurred())

			content := string(results[0].Deployment)
			Expect(content).To(ContainSubstring(`stringValue="` + policyGUID + `"`))
			Expect(content).To(ContainSubstring(`stringValue="` + encassGUID + `"`))
		})

		It("should reject a reference to a dependency entity with per-build identity", func() {
			dep := dependencyWithEncass("lib", "Shared")
			dep.EncapsulatedAssertions["Shared"].Annotations = v1alpha1.Annotations{{Type: types.AnnotationBundle}}
			b := newProject()
			b.Dependencies = []*v1alpha1.Bundle{dep}
			addPolicy(b, "apis/audit", policy(encass("Shared", false)))

			_, err := c.Compile(ctx, b, Options{})
			Expect(err).To(HaveOccurred())
			Expect(conditions.ReasonOf(err)).To(Equal(conditions.ReasonUnstableReference))
			Expect(err.Error()).To(ContainSubstring("apis/audit"))
			Expect(err.Error()).To(ContainSubstring(types.AnnotationReusableEntity))
		})

		It("should use the namespaced name an annotated dependency deploys a connection under", func() {
			dep := annotatedDependency("Report")
			depResults, err := c.Compile(ctx, dep, Options{})
			Expect(err).NotTo(HaveOccurred())
			ledger := ofType(depResults[0].EnvironmentRecords, types.EntityTypeJdbcConnection)
			Expect(ledger).To(HaveLen(1))
			Expect(ledger[0].Name).To(Equal("::g.Report::ledger::1.0"))

			b := newProject()
			b.Dependencies = []*v1alpha1.Bundle{dep}
			addPolicy(b, "apis/report", policy(jdbcQuery("ledger")))
			results, err := c.Compile(ctx, b, Options{})
			Expect(err).NotTo(HaveOccurred())
			Expect(string(results[0].Deployment)).To(ContainSubstring(`ConnectionName stringValue="` + ledger[0].Name + `"`))
			Expect(dep.JdbcConnections["ledger"].Name).To(Equal("ledger"))
		})

		It("should reject a connection each annotated dependency bundle deploys under its own name", func() {
			b := newProject()
			b.Dependencies = []*v1alpha1.Bundle{annotatedDependency("Report", "Audit")}
			addPolicy(b, "apis/report", policy(jdbcQuery("ledger")))

			_, err := c.Compile(ctx, b, Options{})
			Expect(err).To(HaveOccurred())
			Expect(conditions.ReasonOf(err)).To(Equal(conditions.ReasonUnstableReference))
			Expect(err.Error()).To(ContainSubstring("apis/report"))
		})

		It("should fail on a missing encass naming the referencing policy", func() {
			b := newProject()
			addPolicy(b, "apis/broken", policy(encass("Nowhere", false)))

			_, err := c.Compile(ctx, b, Options{})
			Expect(err).To(HaveOccurred())
			Expect(conditions.ReasonOf(err)).To(Equal(conditions.ReasonDependencyNotFound))
			Expect(err.Error()).To(ContainSubstring("apis/broken"))
		})

		It("should write the placeholder guid for a missing no-op encass", func() {
			b := newProject()
			addPolicy(b, "apis/optional", policy(encass("Nowhere", true)))

			results, err := c.Compile(ctx, b, Options{})
			Expect(err).NotTo(HaveOccurred())
			Expect(string(results[0].Deployment)).To(ContainSubstring(types.MissingEncassGUID))
		})

		It("should resolve references to excluded policies through the missing table", func() {
			b := newProject()
			results, err := c.Compile(ctx, b, Options{ExcludePatterns: []string{"apis/shared"}})
			Expect(err).NotTo(HaveOccurred())

			res := results[0]
			Expect(typeNames(ofType(res.DeploymentRecords, types.EntityTypePolicy))).To(Equal([]string{
				"POLICY validate", "POLICY orders",
			}))
			Expect(string(res.Deployment)).NotTo(ContainSubstring("PolicyPath"))
		})
	})

	Context("Metrics", func() {
		It("should record builder runs and the build result", func() {
			c.Metrics = NewMetrics()
			_, err := c.Compile(ctx, newProject(), Options{})
			Expect(err).NotTo(HaveOccurred())

			Expect(testutil.ToFloat64(c.Metrics.BuildsTotal.WithLabelValues("success"))).To(Equal(1.0))
			Expect(testutil.ToFloat64(c.Metrics.LastBuildSuccess)).To(Equal(1.0))
			Expect(testutil.ToFloat64(c.Metrics.RecordsTotal.WithLabelValues(types.EntityTypePolicy, builder.Deployment.String()))).To(Equal(3.0))
			Expect(testutil.ToFloat64(c.Metrics.BundlesTotal.WithLabelValues("plain"))).To(Equal(1.0))
		})

		It("should record a failed build", func() {
			c.Metrics = NewMetrics()
			b := newProject()
			addPolicy(b, "apis/broken", policy(include("apis/gone")))

			_, err := c.Compile(ctx, b, Options{})
			Expect(err).To(HaveOccurred())
			Expect(testutil.ToFloat64(c.Metrics.BuildsTotal.WithLabelValues("error"))).To(Equal(1.0))
			Expect(testutil.ToFloat64(c.Metrics.LastBuildSuccess)).To(Equal(0.0))
		})
	})

	It("should stop on a cancelled context", func() {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := c.Compile(cancelled, newProject(), Options{})
		Expect(err).To(MatchError(context.Canceled))
	})

	It("should sanitize file names", func() {
		res := &Result{Name: "a/b c", Version: "2.0"}
		Expect(res.FileBase()).To(Equal("a_b_c-2.0"))
		Expect(strings.Contains((&Result{Name: "x"}).FileBase(), "-")).To(BeFalse())
	})
})
