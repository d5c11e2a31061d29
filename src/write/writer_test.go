package write_test

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/go-cmp/cmp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"graphorm/src/domain"
	"graphorm/src/domain/entities"
	"graphorm/src/infra/memory"
	"graphorm/src/query"
	"graphorm/src/test_artefacts/comparer"
	"graphorm/src/test_artefacts/fixtures"
	"graphorm/src/test_artefacts/stubs"
	"graphorm/src/write"
)

var _ = Describe("Writer", func() {
	var (
		ctx      context.Context
		store    *memory.Session
		session  *faultySession
		observer *recordingObserver
		writer   *write.Writer
		planner  *query.Planner
	)

	BeforeEach(func() {
		ctx = context.Background()
		registry := fixtures.Registry()
		store = memory.NewSession()
		session = &faultySession{Session: store}
		observer = &recordingObserver{}
		writer = write.NewWriter(registry, session, nil, slog.Default(), observer)
		planner = query.NewPlanner(registry, store, slog.Default())
	})

	Context("when creating a single related entity", func() {
		It("binds the account on the returned root", func() {
			// ACT
			user, err := writer.CreateWith(ctx, "User",
				map[string]any{"name": "Misteek"},
				write.With("account", write.AttributeSet{"guid": "X"}))

			// ASSERT
			Expect(err).NotTo(HaveOccurred())
			Expect(user.Exists).To(BeTrue())
			binding, ok := user.Relation("account")
			Expect(ok).To(BeTrue())
			Expect(binding.Many).To(BeFalse())
			Expect(binding.First().Attr("guid")).To(Equal("X"))
			Expect(binding.First().Exists).To(BeTrue())

			edges := store.Edges()
			Expect(edges).To(HaveLen(1))
			Expect(edges[0].LeftEntityID).To(Equal(user.ID))
			Expect(edges[0].RightEntityID).To(Equal(binding.First().ID))
			Expect(edges[0].RelationshipType).To(Equal("ACCOUNT"))
		})
	})

	Context("when creating many related entities", func() {
		It("persists them in caller order", func() {
			// ARRANGE
			a := stubs.NewEntityStub().WithLabel("Photo").WithAttributes(map[string]any{"url": "a.png"})
			b := stubs.NewEntityStub().WithLabel("Photo").WithAttributes(map[string]any{"url": "b.png"})
			c := stubs.NewEntityStub().WithLabel("Photo").WithAttributes(map[string]any{"url": "c.png"})

			// ACT
			post, err := writer.CreateWith(ctx, "Post",
				map[string]any{"title": "holiday"},
				write.With("photos", write.Attributes(a.Attributes(), b.Attributes(), c.Attributes())))
			Expect(err).NotTo(HaveOccurred())

			// ASSERT
			fresh, err := planner.Find(ctx, "Post", post.ID)
			Expect(err).NotTo(HaveOccurred())
			photos, err := planner.Related(ctx, fresh, "photos")
			Expect(err).NotTo(HaveOccurred())

			expected := []*entities.Entity{a.Get(), b.Get(), c.Get()}
			Expect(cmp.Diff(expected, photos.All(), comparer.Entity())).To(BeEmpty())

			bound, _ := post.Relation("photos")
			Expect(cmp.Diff(expected, bound.All(), comparer.Entity())).To(BeEmpty())
		})

		It("creates unpersisted instances and assigns their identity on commit", func() {
			// ARRANGE
			read := stubs.NewEntityStub().WithLabel("Permission").WithAttributes(map[string]any{"alias": "read"}).Get()
			writePerm := stubs.NewEntityStub().WithLabel("Permission").WithAttributes(map[string]any{"alias": "write"}).Get()

			// ACT
			role, err := writer.CreateWith(ctx, "Role",
				map[string]any{"alias": "editor"},
				write.With("permissions", write.List{write.Entity(read), write.Entity(writePerm)}))

			// ASSERT
			Expect(err).NotTo(HaveOccurred())
			Expect(read.Exists).To(BeTrue())
			Expect(writePerm.Exists).To(BeTrue())
			Expect(read.ID).NotTo(Equal(writePerm.ID))
			bound, _ := role.Relation("permissions")
			Expect(bound.All()).To(HaveExactElements(BeIdenticalTo(read), BeIdenticalTo(writePerm)))
			Expect(store.Len("Permission")).To(Equal(2))
		})

		It("links persisted entities without creating them again", func() {
			// ARRANGE
			existing, err := writer.Create(ctx, "Permission", map[string]any{"alias": "read"})
			Expect(err).NotTo(HaveOccurred())

			// ACT
			role, err := writer.CreateWith(ctx, "Role",
				map[string]any{"alias": "viewer"},
				write.With("permissions", write.List{write.Entity(existing), write.AttributeSet{"alias": "list"}}))

			// ASSERT
			Expect(err).NotTo(HaveOccurred())
			Expect(store.Len("Permission")).To(Equal(2))
			bound, _ := role.Relation("permissions")
			Expect(bound.First()).To(BeIdenticalTo(existing))

			result := observer.results[len(observer.results)-1]
			Expect(result.Linked).To(HaveExactElements(BeIdenticalTo(existing)))
			Expect(result.Created).To(HaveLen(1))
		})

		It("processes several relations in order", func() {
			// ACT
			post, err := writer.CreateWith(ctx, "Post",
				map[string]any{"title": "trip"},
				write.With("videos", write.AttributeSet{"title": "clip"}).
					With("photos", write.Attributes(map[string]any{"url": "1.png"}, map[string]any{"url": "2.png"})).
					With("comments", write.AttributeSet{"text": "nice"}))

			// ASSERT
			Expect(err).NotTo(HaveOccurred())
			Expect(post.Loaded()).To(ConsistOf("videos", "photos", "comments"))

			edges := store.Edges()
			labels := make([]string, 0, len(edges))
			for _, e := range edges {
				Expect(e.LeftEntityID).To(Equal(post.ID))
				labels = append(labels, e.RelationshipType)
			}
			Expect(labels).To(Equal([]string{"VIDEO", "PHOTO", "PHOTO", "COMMENT"}))
		})
	})

	Context("when writing inverse relations", func() {
		It("points a belongs-to edge at the root", func() {
			// ACT
			account, err := writer.CreateWith(ctx, "Account",
				map[string]any{"guid": "G-1"},
				write.With("user", write.AttributeSet{"name": "Ada"}))

			// ASSERT
			Expect(err).NotTo(HaveOccurred())
			user, _ := account.Relation("user")
			edges := store.Edges()
			Expect(edges).To(HaveLen(1))
			Expect(edges[0].LeftEntityID).To(Equal(user.First().ID))
			Expect(edges[0].RightEntityID).To(Equal(account.ID))

			found, err := planner.Execute(ctx, planner.Query("User").Has("account"))
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(HaveLen(1))
		})

		It("points every belongs-to-many edge at the root", func() {
			// ACT
			role, err := writer.CreateWith(ctx, "Role",
				map[string]any{"alias": "admin"},
				write.With("users", write.Attributes(map[string]any{"name": "Ada"}, map[string]any{"name": "Bob"})))

			// ASSERT
			Expect(err).NotTo(HaveOccurred())
			for _, e := range store.Edges() {
				Expect(e.RightEntityID).To(Equal(role.ID))
				Expect(e.RelationshipType).To(Equal("PERMITTED"))
			}

			users, err := planner.Execute(ctx, planner.Query("User").WhereHas("roles", func(q query.Query) query.Query {
				return q.Where("alias", domain.Equal, "admin")
			}))
			Expect(err).NotTo(HaveOccurred())
			Expect(users).To(HaveLen(2))
		})
	})

	Context("when the write must be rejected", func() {
		It("leaves nothing behind when a related entity fails validation", func() {
			// ACT
			_, err := writer.CreateWith(ctx, "User",
				map[string]any{"name": "Ada"},
				write.With("roles", write.Attributes(
					map[string]any{"alias": "admin"},
					map[string]any{"alias": ""},
					map[string]any{"alias": "viewer"},
				)))

			// ASSERT
			Expect(err).To(MatchError(domain.ErrValidationFailed))
			Expect(store.Len("User")).To(BeZero())
			Expect(store.Len("Role")).To(BeZero())
			Expect(store.Edges()).To(BeEmpty())
			Expect(session.txs[0].rolledBack).To(BeTrue())
			Expect(observer.results).To(BeEmpty())
		})

		It("rejects an invalid root", func() {
			_, err := writer.Create(ctx, "User", map[string]any{"email": "ada@example.com"})

			Expect(err).To(MatchError(domain.ErrValidationFailed))
			Expect(store.Len("User")).To(BeZero())
		})

		It("rejects undeclared relations without opening a transaction", func() {
			// ACT
			_, err := writer.CreateWith(ctx, "User",
				map[string]any{"name": "Ada"},
				write.With("friends", write.AttributeSet{"name": "Bob"}))

			// ASSERT
			Expect(err).To(MatchError(domain.ErrUnknownRelation))
			Expect(session.begins).To(BeZero())
		})

		It("rejects unregistered kinds", func() {
			_, err := writer.Create(ctx, "Ghost", map[string]any{"name": "boo"})
			Expect(err).To(MatchError(domain.ErrInvalidRelationKind))
		})

		It("rejects entities of the wrong kind", func() {
			photo := stubs.NewEntityStub().WithLabel("Photo").Get()

			_, err := writer.CreateWith(ctx, "Post", nil, write.With("videos", write.Entity(photo)))

			Expect(err).To(MatchError(domain.ErrInvalidRelationKind))
		})

		It("rejects several entities on a single relation", func() {
			// ACT
			_, listErr := writer.CreateWith(ctx, "User",
				map[string]any{"name": "Ada"},
				write.With("account", write.Attributes(map[string]any{"guid": "1"}, map[string]any{"guid": "2"})))
			_, repeatErr := writer.CreateWith(ctx, "User",
				map[string]any{"name": "Ada"},
				write.With("account", write.AttributeSet{"guid": "1"}).With("account", write.AttributeSet{"guid": "2"}))

			// ASSERT
			Expect(listErr).To(HaveOccurred())
			Expect(repeatErr).To(HaveOccurred())
			Expect(session.begins).To(BeZero())
		})

		It("rejects nested lists and missing values", func() {
			_, nestedErr := writer.CreateWith(ctx, "Post", nil,
				write.With("photos", write.List{write.Attributes(map[string]any{"url": "x"})}))
			_, nilErr := writer.CreateWith(ctx, "Post", nil, write.With("photos", nil))

			Expect(nestedErr).To(MatchError(ContainSubstring("nested lists")))
			Expect(nilErr).To(MatchError(ContainSubstring("missing related value")))
		})

		It("fails when a linked entity is missing from the store", func() {
			// ARRANGE
			ghost := stubs.NewEntityStub().WithLabel("Permission").Persisted().Get()

			// ACT
			_, err := writer.CreateWith(ctx, "Role",
				map[string]any{"alias": "admin"},
				write.With("permissions", write.Entity(ghost)))

			// ASSERT
			Expect(err).To(MatchError(domain.ErrEntityNotFound))
			Expect(store.Len("Role")).To(BeZero())
		})
	})

	Context("when the store fails", func() {
		It("surfaces node creation failures and rolls back", func() {
			// ARRANGE
			session.failCreate = 3
			session.createErr = domain.ErrStoreUnavailable

			// ACT
			_, err := writer.CreateWith(ctx, "Post",
				map[string]any{"title": "x"},
				write.With("photos", write.Attributes(map[string]any{"url": "1"}, map[string]any{"url": "2"})))

			// ASSERT
			Expect(err).To(MatchError(domain.ErrStoreUnavailable))
			Expect(session.txs[0].rolledBack).To(BeTrue())
			Expect(store.Len("Post")).To(BeZero())
			Expect(store.Len("Photo")).To(BeZero())
		})

		It("reports rejected commits as write conflicts and leaves instances untouched", func() {
			// ARRANGE
			session.commitErr = errors.New("serialization failure")
			permission := stubs.NewEntityStub().WithLabel("Permission").Get()

			// ACT
			_, err := writer.CreateWith(ctx, "Role",
				map[string]any{"alias": "admin"},
				write.With("permissions", write.Entity(permission)))

			// ASSERT
			Expect(err).To(MatchError(domain.ErrWriteConflict))
			Expect(domain.IsRecoverable(err)).To(BeTrue())
			Expect(permission.Exists).To(BeFalse())
			Expect(permission.ID).To(BeZero())
			Expect(store.Len("Role")).To(BeZero())
			Expect(observer.results).To(BeEmpty())
		})

		It("keeps store unavailability from commit as-is", func() {
			session.commitErr = domain.ErrStoreUnavailable

			_, err := writer.Create(ctx, "Photo", map[string]any{"url": "x"})

			Expect(err).To(MatchError(domain.ErrStoreUnavailable))
			Expect(err).NotTo(MatchError(domain.ErrWriteConflict))
		})
	})

	Context("when the same entity appears twice in one write", func() {
		It("creates a repeated unpersisted instance once", func() {
			// ARRANGE
			permission := entities.New("Permission", map[string]any{"name": "read"})

			// ACT
			role, err := writer.CreateWith(ctx, "Role",
				map[string]any{"alias": "reader"},
				write.With("permissions", write.List{write.Entity(permission), write.Entity(permission)}))

			// ASSERT
			Expect(err).NotTo(HaveOccurred())
			Expect(store.Len("Permission")).To(Equal(1))
			Expect(store.Edges()).To(HaveLen(1))
			Expect(store.Edges()[0].RightEntityID).To(Equal(permission.ID))
			binding, _ := role.Relation("permissions")
			Expect(binding.All()).To(HaveExactElements(BeIdenticalTo(permission)))
		})

		It("links a persisted entity once even through distinct instances", func() {
			// ARRANGE
			admin, err := writer.Create(ctx, "Role", map[string]any{"alias": "admin"})
			Expect(err).NotTo(HaveOccurred())
			sameAdmin, err := planner.Find(ctx, "Role", admin.ID)
			Expect(err).NotTo(HaveOccurred())

			// ACT
			user, err := writer.CreateWith(ctx, "User",
				map[string]any{"name": "Ada"},
				write.With("roles", write.Entity(admin)).With("roles", write.Entity(sameAdmin)))

			// ASSERT
			Expect(err).NotTo(HaveOccurred())
			Expect(store.Edges()).To(HaveLen(1))
			result := observer.results[len(observer.results)-1]
			Expect(result.Edges).To(HaveLen(1))
			Expect(result.Linked).To(HaveLen(1))
			binding, _ := user.Relation("roles")
			Expect(binding.Len()).To(Equal(1))
		})
	})

	Context("when the relation is bidirectional", func() {
		It("finds friends linked from either side", func() {
			// ARRANGE
			ada, err := writer.CreateWith(ctx, "Person",
				map[string]any{"name": "Ada"},
				write.With("friends", write.AttributeSet{"name": "Bob"}))
			Expect(err).NotTo(HaveOccurred())
			bob, _ := ada.Relation("friends")
			_, err = writer.CreateWith(ctx, "Person",
				map[string]any{"name": "Eve"},
				write.With("friends", write.Entity(ada)))
			Expect(err).NotTo(HaveOccurred())

			// ACT
			adaFriends, err := planner.Load(ctx, ada, "friends")
			Expect(err).NotTo(HaveOccurred())
			bobFriends, err := planner.Load(ctx, bob.First(), "friends")
			Expect(err).NotTo(HaveOccurred())
			friendsOfEve, err := planner.Execute(ctx, planner.Query("Person").WhereHas("friends", func(q query.Query) query.Query {
				return q.Where("name", domain.Equal, "Eve")
			}))
			Expect(err).NotTo(HaveOccurred())

			// ASSERT
			names := func(found []*entities.Entity) []any {
				out := make([]any, 0, len(found))
				for _, e := range found {
					out = append(out, e.Attr("name"))
				}
				return out
			}
			Expect(names(adaFriends.All())).To(ConsistOf("Bob", "Eve"))
			Expect(names(bobFriends.All())).To(ConsistOf("Ada"))
			Expect(names(friendsOfEve)).To(ConsistOf("Ada"))

			edges := store.Edges()
			Expect(edges).To(HaveLen(2))
			Expect(edges[1].LeftEntityID).NotTo(Equal(ada.ID))
			Expect(edges[1].RightEntityID).To(Equal(ada.ID))
		})
	})

	Context("when the write commits", func() {
		It("notifies observers with every created node and edge", func() {
			// ACT
			user, err := writer.CreateWith(ctx, "User",
				map[string]any{"name": "Ada"},
				write.With("roles", write.AttributeSet{"alias": "admin"}))

			// ASSERT
			Expect(err).NotTo(HaveOccurred())
			Expect(observer.results).To(HaveLen(1))
			result := observer.results[0]
			Expect(result.Root).To(BeIdenticalTo(user))
			Expect(result.Created).To(HaveLen(1))
			Expect(result.Edges).To(HaveLen(1))
			Expect(result.Labels()).To(Equal([]string{"User", "Role"}))
		})
	})
})
