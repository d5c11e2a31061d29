package postgres_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"graphorm/src/domain"
	"graphorm/src/graph"
	"graphorm/src/infra/postgres"
	"graphorm/src/schema"
)

var _ = Describe("RenderQuery", func() {
	Context("when the traversal has only root conditions", func() {
		It("renders containment for equality and the identity column for id", func() {
			// ARRANGE
			spec := graph.TraversalSpec{Root: graph.Match{
				Label: "User",
				Conditions: []graph.Condition{
					{Attribute: "name", Comparator: domain.Equal, Value: "Alice"},
					{Attribute: "id", Comparator: domain.Greater, Value: int64(10)},
				},
			}}

			// ACT
			query, args, err := postgres.RenderQuery(spec)

			// ASSERT
			Expect(err).NotTo(HaveOccurred())
			Expect(query).To(Equal("SELECT n0.id, n0.type, n0.properties FROM entities n0 WHERE n0.type = $1 AND n0.properties @> $2::jsonb AND n0.id > $3 ORDER BY n0.id"))
			Expect(args).To(Equal([]any{"User", `{"name":"Alice"}`, int64(10)}))
		})

		It("renders ordering comparisons guarded by the json type", func() {
			spec := graph.TraversalSpec{Root: graph.Match{
				Label:      "Post",
				Conditions: []graph.Condition{{Attribute: "views", Comparator: domain.GreaterOrEqual, Value: 3}},
			}, Limit: 5}

			query, args, err := postgres.RenderQuery(spec)

			Expect(err).NotTo(HaveOccurred())
			Expect(query).To(ContainSubstring("(jsonb_typeof(n0.properties -> $2) = $3 AND n0.properties -> $2 >= $4::jsonb)"))
			Expect(query).To(HaveSuffix("ORDER BY n0.id LIMIT 5"))
			Expect(args).To(Equal([]any{"Post", "views", "number", "3"}))
		})

		It("renders a null test for nil values", func() {
			spec := graph.TraversalSpec{Root: graph.Match{
				Label:      "Post",
				Conditions: []graph.Condition{{Attribute: "deleted_at", Comparator: domain.NotEqual, Value: nil}},
			}}

			query, _, err := postgres.RenderQuery(spec)

			Expect(err).NotTo(HaveOccurred())
			Expect(query).To(ContainSubstring("NOT COALESCE(n0.properties -> $2, 'null'::jsonb) = 'null'::jsonb"))
		})
	})

	Context("when the traversal has relation fragments", func() {
		It("renders existence as EXISTS over the outgoing edge", func() {
			// ARRANGE
			spec := graph.TraversalSpec{Root: graph.Match{
				Label: "User",
				Fragments: []graph.Fragment{{
					Relation:   "posts",
					EdgeLabel:  "HAS_POST",
					Direction:  schema.Outgoing,
					Target:     graph.Match{Label: "Post"},
					Comparator: domain.GreaterOrEqual,
					Count:      1,
				}},
			}}

			// ACT
			query, args, err := postgres.RenderQuery(spec)

			// ASSERT
			Expect(err).NotTo(HaveOccurred())
			Expect(query).To(ContainSubstring("EXISTS (SELECT 1 FROM edges e2 JOIN entities n1 ON e2.left_entity_id = n0.id AND n1.id = e2.right_entity_id WHERE e2.relationship_type = $2 AND n1.type = $3)"))
			Expect(args).To(Equal([]any{"User", "HAS_POST", "Post"}))
		})

		It("renders counts as a distinct correlated subquery over the incoming edge", func() {
			spec := graph.TraversalSpec{Root: graph.Match{
				Label: "Account",
				Fragments: []graph.Fragment{{
					Relation:   "users",
					EdgeLabel:  "HAS_ACCOUNT",
					Direction:  schema.Incoming,
					Target:     graph.Match{Label: "User"},
					Comparator: domain.NotEqual,
					Count:      2,
				}},
			}}

			query, args, err := postgres.RenderQuery(spec)

			Expect(err).NotTo(HaveOccurred())
			Expect(query).To(ContainSubstring("(SELECT COUNT(DISTINCT n1.id) FROM edges e2 JOIN entities n1 ON e2.right_entity_id = n0.id AND n1.id = e2.left_entity_id WHERE e2.relationship_type = $2 AND n1.type = $3) <> $4"))
			Expect(args).To(Equal([]any{"Account", "HAS_ACCOUNT", "User", 2}))
		})

		It("nests constrained fragments inside the outer subquery", func() {
			spec := graph.TraversalSpec{Root: graph.Match{
				Label: "User",
				Fragments: []graph.Fragment{{
					Relation:  "posts",
					EdgeLabel: "HAS_POST",
					Direction: schema.Outgoing,
					Target: graph.Match{
						Label:      "Post",
						Conditions: []graph.Condition{{Attribute: "title", Comparator: domain.Equal, Value: "hello"}},
						Fragments: []graph.Fragment{{
							Relation:   "comments",
							EdgeLabel:  "HAS_COMMENT",
							Direction:  schema.Either,
							Target:     graph.Match{Label: "Comment"},
							Comparator: domain.GreaterOrEqual,
							Count:      1,
						}},
					},
					Comparator: domain.GreaterOrEqual,
					Count:      1,
				}},
			}}

			query, args, err := postgres.RenderQuery(spec)

			Expect(err).NotTo(HaveOccurred())
			Expect(query).To(ContainSubstring("n1.properties @> $4::jsonb AND EXISTS (SELECT 1 FROM edges e4 JOIN entities n3 ON ((e4.left_entity_id = n1.id AND n3.id = e4.right_entity_id) OR (e4.right_entity_id = n1.id AND n3.id = e4.left_entity_id))"))
			Expect(args).To(HaveLen(6))
		})
	})

	Context("when the traversal carries unsafe identifiers", func() {
		It("rejects them before rendering", func() {
			spec := graph.TraversalSpec{Root: graph.Match{Label: "User; DROP TABLE entities"}}

			_, _, err := postgres.RenderQuery(spec)

			Expect(err).To(HaveOccurred())
		})

		It("rejects unknown comparators", func() {
			spec := graph.TraversalSpec{Root: graph.Match{
				Label:      "User",
				Conditions: []graph.Condition{{Attribute: "age", Comparator: "LIKE", Value: 1}},
			}}

			_, _, err := postgres.RenderQuery(spec)

			Expect(err).To(MatchError(domain.ErrInvalidComparator))
		})
	})
})
