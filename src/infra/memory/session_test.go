package memory_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"graphorm/src/domain"
	"graphorm/src/graph"
	"graphorm/src/infra/memory"
	"graphorm/src/schema"
)

func people() graph.TraversalSpec {
	return graph.TraversalSpec{Root: graph.Match{Label: "Person"}}
}

func friendsOf(id int64, direction schema.Direction) graph.TraversalSpec {
	return graph.TraversalSpec{Root: graph.Match{
		Label: "Person",
		Fragments: []graph.Fragment{{
			Relation:  "friends",
			EdgeLabel: "FRIEND",
			Direction: direction,
			Target: graph.Match{
				Label:      "Person",
				Conditions: []graph.Condition{{Attribute: graph.IdentityAttribute, Comparator: domain.Equal, Value: id}},
			},
			Comparator: domain.GreaterOrEqual,
			Count:      1,
		}},
	}}
}

var _ = Describe("Session", func() {
	var (
		ctx     context.Context
		session *memory.Session
	)

	BeforeEach(func() {
		ctx = context.Background()
		session = memory.NewSession()
	})

	Context("when a transaction is open", func() {
		It("hides its nodes until commit", func() {
			// ARRANGE
			tx, err := session.Begin(ctx)
			Expect(err).NotTo(HaveOccurred())
			_, err = tx.CreateNode(ctx, "Person", map[string]any{"name": "Ada"})
			Expect(err).NotTo(HaveOccurred())

			// ACT
			before, _ := session.RunQuery(ctx, people())
			Expect(tx.Commit(ctx)).To(Succeed())
			after, _ := session.RunQuery(ctx, people())

			// ASSERT
			Expect(before).To(BeEmpty())
			Expect(after).To(HaveLen(1))
			Expect(after[0].Attributes).To(Equal(map[string]any{"name": "Ada"}))
		})

		It("discards everything on rollback", func() {
			// ARRANGE
			tx, _ := session.Begin(ctx)
			a, _ := tx.CreateNode(ctx, "Person", nil)
			b, _ := tx.CreateNode(ctx, "Person", nil)
			Expect(tx.CreateEdge(ctx, a, b, "FRIEND")).To(Succeed())

			// ACT
			Expect(tx.Rollback(ctx)).To(Succeed())

			// ASSERT
			Expect(session.Len("Person")).To(BeZero())
			Expect(session.Edges()).To(BeEmpty())
			Expect(tx.Rollback(ctx)).To(Succeed())
			Expect(tx.Commit(ctx)).To(MatchError(memory.ErrTxClosed))
		})

		It("rejects edges to unknown nodes", func() {
			tx, _ := session.Begin(ctx)
			a, _ := tx.CreateNode(ctx, "Person", nil)

			Expect(tx.CreateEdge(ctx, a, 999, "FRIEND")).To(MatchError(domain.ErrEntityNotFound))
		})

		It("rejects unsafe labels", func() {
			tx, _ := session.Begin(ctx)

			_, err := tx.CreateNode(ctx, "Person {x}", nil)

			Expect(err).To(HaveOccurred())
		})

		It("copies attributes on create", func() {
			// ARRANGE
			attributes := map[string]any{"name": "Ada"}
			tx, _ := session.Begin(ctx)
			_, _ = tx.CreateNode(ctx, "Person", attributes)
			Expect(tx.Commit(ctx)).To(Succeed())

			// ACT
			attributes["name"] = "Bob"

			// ASSERT
			rows, _ := session.RunQuery(ctx, people())
			Expect(rows[0].Attributes["name"]).To(Equal("Ada"))
		})
	})

	Context("when traversing", func() {
		var ada, bob, eve int64

		BeforeEach(func() {
			tx, _ := session.Begin(ctx)
			ada, _ = tx.CreateNode(ctx, "Person", map[string]any{"name": "Ada"})
			bob, _ = tx.CreateNode(ctx, "Person", map[string]any{"name": "Bob"})
			eve, _ = tx.CreateNode(ctx, "Person", map[string]any{"name": "Eve"})
			Expect(tx.CreateEdge(ctx, ada, bob, "FRIEND")).To(Succeed())
			Expect(tx.CreateEdge(ctx, ada, bob, "FRIEND")).To(Succeed())
			Expect(tx.CreateEdge(ctx, bob, eve, "FRIEND")).To(Succeed())
			Expect(tx.Commit(ctx)).To(Succeed())
		})

		rowIDs := func(rows []graph.Row) []int64 {
			out := make([]int64, 0, len(rows))
			for _, r := range rows {
				out = append(out, r.ID)
			}
			return out
		}

		It("follows edges in the requested direction", func() {
			outgoing, err := session.RunQuery(ctx, friendsOf(bob, schema.Outgoing))
			Expect(err).NotTo(HaveOccurred())
			incoming, err := session.RunQuery(ctx, friendsOf(bob, schema.Incoming))
			Expect(err).NotTo(HaveOccurred())
			either, err := session.RunQuery(ctx, friendsOf(bob, schema.Either))
			Expect(err).NotTo(HaveOccurred())

			Expect(rowIDs(outgoing)).To(Equal([]int64{ada}))
			Expect(rowIDs(incoming)).To(Equal([]int64{eve}))
			Expect(rowIDs(either)).To(Equal([]int64{ada, eve}))
		})

		It("counts distinct neighbours rather than edges", func() {
			spec := people()
			spec.Root.Fragments = []graph.Fragment{{
				EdgeLabel:  "FRIEND",
				Direction:  schema.Outgoing,
				Target:     graph.Match{Label: "Person"},
				Comparator: domain.Equal,
				Count:      1,
			}}

			rows, err := session.RunQuery(ctx, spec)

			Expect(err).NotTo(HaveOccurred())
			Expect(rowIDs(rows)).To(Equal([]int64{ada, bob}))
		})

		It("stores a repeated edge once, within and across transactions", func() {
			// ARRANGE
			tx, err := session.Begin(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(tx.CreateEdge(ctx, ada, bob, "FRIEND")).To(Succeed())
			Expect(tx.CreateEdge(ctx, ada, bob, "BLOCKED")).To(Succeed())

			// ACT
			Expect(tx.Commit(ctx)).To(Succeed())

			// ASSERT
			edges := session.Edges()
			Expect(edges).To(HaveLen(3))
			Expect(edges[0].LeftEntityID).To(Equal(ada))
			Expect(edges[0].RelationshipType).To(Equal("FRIEND"))
			Expect(edges[2].RelationshipType).To(Equal("BLOCKED"))
		})

		It("stops at the limit", func() {
			spec := people()
			spec.Limit = 2

			rows, err := session.RunQuery(ctx, spec)

			Expect(err).NotTo(HaveOccurred())
			Expect(rowIDs(rows)).To(Equal([]int64{ada, bob}))
		})

		It("rejects invalid traversals", func() {
			_, err := session.RunQuery(ctx, graph.TraversalSpec{Root: graph.Match{Label: "Person; DROP"}})
			Expect(err).To(HaveOccurred())
		})

		It("honours cancelled contexts", func() {
			cancelled, cancel := context.WithCancel(ctx)
			cancel()

			_, err := session.RunQuery(cancelled, people())

			Expect(err).To(MatchError(context.Canceled))
		})
	})
})
