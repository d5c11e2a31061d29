package graph_test

import (
	"context"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"graphorm/src/domain"
	"graphorm/src/infra/memory"
	"graphorm/src/query"
	"graphorm/src/services/graph"
	"graphorm/src/test_artefacts/fixtures"
	"graphorm/src/write"
)

func ptr[T any](v T) *T {
	return &v
}

var _ = Describe("GraphService", func() {
	var (
		ctx          context.Context
		store        *memory.Session
		graphService *graph.GraphService
	)

	BeforeEach(func() {
		ctx = context.Background()
		registry := fixtures.Registry()
		store = memory.NewSession()
		planner := query.NewPlanner(registry, store, slog.Default())
		writer := write.NewWriter(registry, store, nil, slog.Default())
		graphService = graph.NewGraphService(registry, planner, writer)
	})

	Context("when creating a graph", func() {
		It("creates the root with new and existing related entities", func() {
			// ARRANGE
			existing, err := graphService.CreateGraph(ctx, domain.CreateGraphRequest{
				Kind:       "Permission",
				Attributes: map[string]any{"alias": "read"},
			})
			Expect(err).NotTo(HaveOccurred())

			request := domain.CreateGraphRequest{
				Kind:       "Role",
				Attributes: map[string]any{"alias": "admin"},
				Relations: []domain.RelationWriteDTO{{
					Relation: "permissions",
					Entities: []domain.RelatedEntityDTO{
						{ID: ptr(existing.ID)},
						{Attributes: map[string]any{"alias": "write"}},
					},
				}},
			}

			// ACT
			role, err := graphService.CreateGraph(ctx, request)

			// ASSERT
			Expect(err).NotTo(HaveOccurred())
			Expect(role.Exists).To(BeTrue())
			binding, ok := role.Relation("permissions")
			Expect(ok).To(BeTrue())
			Expect(binding.Len()).To(Equal(2))
			Expect(binding.All()[0].ID).To(Equal(existing.ID))
			Expect(binding.All()[1].Attributes).To(Equal(map[string]any{"alias": "write"}))
			Expect(store.Len("Permission")).To(Equal(2))
		})

		It("fails when an existing entity cannot be found", func() {
			_, err := graphService.CreateGraph(ctx, domain.CreateGraphRequest{
				Kind:       "Role",
				Attributes: map[string]any{"alias": "admin"},
				Relations: []domain.RelationWriteDTO{{
					Relation: "permissions",
					Entities: []domain.RelatedEntityDTO{{ID: ptr(int64(404))}},
				}},
			})

			Expect(err).To(MatchError(domain.ErrEntityNotFound))
			Expect(store.Len("Role")).To(Equal(0))
		})

		It("rejects unknown relations", func() {
			_, err := graphService.CreateGraph(ctx, domain.CreateGraphRequest{
				Kind:       "Role",
				Attributes: map[string]any{"alias": "admin"},
				Relations:  []domain.RelationWriteDTO{{Relation: "owners"}},
			})

			Expect(err).To(MatchError(domain.ErrUnknownRelation))
		})

		It("rejects several entities on a single relation", func() {
			_, err := graphService.CreateGraph(ctx, domain.CreateGraphRequest{
				Kind:       "User",
				Attributes: map[string]any{"name": "Misteek"},
				Relations: []domain.RelationWriteDTO{{
					Relation: "account",
					Entities: []domain.RelatedEntityDTO{
						{Attributes: map[string]any{"guid": "a"}},
						{Attributes: map[string]any{"guid": "b"}},
					},
				}},
			})

			Expect(err).To(HaveOccurred())
			Expect(store.Len("User")).To(Equal(0))
		})
	})

	Context("when searching", func() {
		BeforeEach(func() {
			for _, alias := range []string{"admin", "editor"} {
				_, err := graphService.CreateGraph(ctx, domain.CreateGraphRequest{
					Kind:       "User",
					Attributes: map[string]any{"name": alias + "-user"},
					Relations: []domain.RelationWriteDTO{{
						Relation: "roles",
						Entities: []domain.RelatedEntityDTO{{Attributes: map[string]any{"alias": alias}}},
					}},
				})
				Expect(err).NotTo(HaveOccurred())
			}
			_, err := graphService.CreateGraph(ctx, domain.CreateGraphRequest{
				Kind:       "User",
				Attributes: map[string]any{"name": "lonely"},
			})
			Expect(err).NotTo(HaveOccurred())
		})

		It("filters by a nested relation document", func() {
			// ACT
			found, err := graphService.SearchEntities(ctx, "User", domain.SearchRequest{
				Has: []domain.RelationFilterDTO{{
					Relation: "roles",
					Where:    []domain.ConditionDTO{{Attribute: "alias", Operator: "=", Value: "admin"}},
				}},
			})

			// ASSERT
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(HaveLen(1))
			Expect(found[0].Attr("name")).To(Equal("admin-user"))
		})

		It("filters by relation counts", func() {
			found, err := graphService.SearchEntities(ctx, "User", domain.SearchRequest{
				Has: []domain.RelationFilterDTO{{Relation: "roles", Operator: "=", Count: ptr(0)}},
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(HaveLen(1))
			Expect(found[0].Attr("name")).To(Equal("lonely"))
		})

		It("rejects unknown operators", func() {
			_, err := graphService.SearchEntities(ctx, "User", domain.SearchRequest{
				Where: []domain.ConditionDTO{{Attribute: "name", Operator: "LIKE", Value: "a%"}},
			})

			Expect(err).To(MatchError(domain.ErrInvalidComparator))
		})

		It("reports nested document errors", func() {
			_, err := graphService.SearchEntities(ctx, "User", domain.SearchRequest{
				Has: []domain.RelationFilterDTO{{
					Relation: "roles",
					Has:      []domain.RelationFilterDTO{{Relation: "missing"}},
				}},
			})

			Expect(err).To(MatchError(domain.ErrUnknownRelation))
		})

		It("applies the limit", func() {
			found, err := graphService.SearchEntities(ctx, "User", domain.SearchRequest{Limit: 2})

			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(HaveLen(2))
		})
	})

	Context("when reading related entities", func() {
		It("loads the relation onto the returned entity", func() {
			account, err := graphService.CreateGraph(ctx, domain.CreateGraphRequest{
				Kind:       "Account",
				Attributes: map[string]any{"guid": "globalid"},
				Relations: []domain.RelationWriteDTO{{
					Relation: "user",
					Entities: []domain.RelatedEntityDTO{{Attributes: map[string]any{"name": "Some Name"}}},
				}},
			})
			Expect(err).NotTo(HaveOccurred())

			found, err := graphService.GetRelated(ctx, "Account", account.ID, "user")

			Expect(err).NotTo(HaveOccurred())
			binding, ok := found.Relation("user")
			Expect(ok).To(BeTrue())
			Expect(binding.First().Attr("name")).To(Equal("Some Name"))
		})

		It("returns not found for a missing entity", func() {
			_, err := graphService.GetEntity(ctx, "User", 12345)

			Expect(err).To(MatchError(domain.ErrEntityNotFound))
		})
	})
})
