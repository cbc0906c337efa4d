package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/docmap/internal/model"
)

const sampleOID = "507f1f77bcf86cd799439011"

func formats(f ...model.Format) []model.Format { return f }

// userModel is the plain document used by most predicate tests.
func userModel(t *testing.T) *model.Model {
	t.Helper()
	m, err := model.Define("User", "users", "id",
		model.Column{Name: "id", Alias: "_id", Formats: formats(model.FormatID)},
		model.Column{Name: "firstName", Formats: formats(model.FormatString)},
		model.Column{Name: "lastName", Alias: "last_name", Formats: formats(model.FormatString)},
		model.Column{Name: "age", Formats: formats(model.FormatInteger)},
		model.Column{Name: "friendIds", Formats: formats(model.FormatArray, model.FormatID), Model: model.Marker(model.PrimitiveID)},
		model.Column{Name: "secret", Formats: formats(model.FormatString), Views: []string{"admin"}},
	)
	require.NoError(t, err)
	return m
}

// blogModels returns Author with a to-many join to Post, and Post with a
// to-one join back to its Author's profile.
func blogModels(t *testing.T) (author, post, profile *model.Model) {
	t.Helper()
	var err error
	profile, err = model.Define("Profile", "profiles", "id",
		model.Column{Name: "id", Alias: "_id", Formats: formats(model.FormatID)},
		model.Column{Name: "bio", Formats: formats(model.FormatString)},
	)
	require.NoError(t, err)

	post, err = model.Define("Post", "posts", "id",
		model.Column{Name: "id", Alias: "_id", Formats: formats(model.FormatID)},
		model.Column{Name: "authorId", Formats: formats(model.FormatID)},
		model.Column{Name: "title", Formats: formats(model.FormatString)},
	)
	require.NoError(t, err)

	author, err = model.Define("Author", "authors", "id",
		model.Column{Name: "id", Alias: "_id", Formats: formats(model.FormatID)},
		model.Column{Name: "name", Formats: formats(model.FormatString)},
		model.Column{Name: "profileId", Formats: formats(model.FormatID)},
		model.Column{Name: "profile", Formats: formats(model.FormatObject), Model: model.Composite(profile),
			Foreign: &model.Foreign{Local: "profileId", Foreign: "id"}},
		model.Column{Name: "posts", Formats: formats(model.FormatArray), Model: model.Composite(post),
			Foreign: &model.Foreign{Local: "id", Foreign: "authorId"}, Views: []string{"posts"}},
	)
	require.NoError(t, err)
	return author, post, profile
}
