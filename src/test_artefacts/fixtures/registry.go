package fixtures

import "graphorm/src/schema"

// Registry monta o schema usado nos testes:
//
//	User -roles-> Role -permissions-> Permission
//	User -account-> Account
//	Post -photos/videos/comments-> Photo/Video/Comment
//	Person -friends- Person (nos dois sentidos)
func Registry() *schema.Registry {
	r := schema.NewRegistry().MustRegister(
		schema.Kind{Label: "User", Required: []string{"name"}},
		schema.Kind{Label: "Account", Required: []string{"guid"}},
		schema.Kind{Label: "Role", Required: []string{"alias"}},
		schema.Kind{Label: "Permission"},
		schema.Kind{Label: "Post"},
		schema.Kind{Label: "Photo"},
		schema.Kind{Label: "Video"},
		schema.Kind{Label: "Comment"},
		schema.Kind{Label: "Person", Required: []string{"name"}},
	)

	must(r.HasMany("User", "roles", "Role", "PERMITTED"))
	must(r.HasOne("User", "account", "Account", "ACCOUNT"))
	must(r.BelongsTo("Account", "user", "User", "ACCOUNT"))
	must(r.BelongsToMany("Role", "users", "User", "PERMITTED"))
	must(r.HasMany("Role", "permissions", "Permission", "ALLOWS"))
	must(r.BelongsToMany("Permission", "roles", "Role", "ALLOWS"))
	must(r.HasMany("Post", "photos", "Photo", "PHOTO"))
	must(r.HasMany("Post", "videos", "Video", "VIDEO"))
	must(r.HasMany("Post", "comments", "Comment", "COMMENT"))
	must(r.BelongsTo("Comment", "post", "Post", "COMMENT"))
	must(r.Describe("friends", "Person", "Person", "FRIEND", schema.Many, schema.Either))

	return r
}

func must(_ schema.Descriptor, err error) {
	if err != nil {
		panic(err)
	}
}
