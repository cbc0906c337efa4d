package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/roach88/docmap/internal/model"
)

func levelTree() (*Level, *resolution) {
	r := &resolution{root: newRootLevel()}
	posts := r.open(r.root, []string{"posts"}, true)
	r.open(posts, []string{"posts", "comments"}, true)
	r.open(r.root, []string{"tags"}, false)
	return r.root, r
}

func TestDecomposeAllPreOrder(t *testing.T) {
	root, _ := levelTree()
	var paths []string
	for _, l := range decomposeAll(root) {
		paths = append(paths, l.Field())
	}
	assert.Equal(t, []string{"posts", "posts.comments", "tags"}, paths)
	assert.Empty(t, decomposeAll(newRootLevel()))
}

func TestLevelKeys(t *testing.T) {
	root, _ := levelTree()
	levels := decomposeAll(root)

	assert.Equal(t, "$_id", root.key())
	assert.Equal(t, "$posts._id", levels[0].key())
	assert.Equal(t, "$posts.comments._id", levels[1].key())
	assert.Equal(t, "$__idx_3", levels[2].key())
	assert.True(t, root.IsRoot())
	assert.False(t, levels[1].IsRoot())
}

func TestComposeAllInnermostFirst(t *testing.T) {
	root, _ := levelTree()
	stages := composeAll(root, []string{"name", "posts", "tags"})
	require.Len(t, stages, 6)

	var ids []bson.D
	var pushed []string
	for _, stage := range stages {
		if stage[0].Key != "$group" {
			continue
		}
		group := stage[0].Value.(bson.D)
		ids = append(ids, group[0].Value.(bson.D))
		push := group[len(group)-1].Value.(bson.D)[0].Value.(bson.D)
		pushed = append(pushed, push[1].Value.(string))
	}

	// Reverse pre-order: tags, then comments inside posts, then posts.
	assert.Equal(t, []string{"$tags", "$posts.comments", "$posts"}, pushed)
	assert.Equal(t, []bson.D{
		{{Key: "l0", Value: "$_id"}, {Key: "l1", Value: "$posts._id"}, {Key: "l2", Value: "$posts.comments._id"}},
		{{Key: "l0", Value: "$_id"}, {Key: "l1", Value: "$posts._id"}},
		{{Key: "l0", Value: "$_id"}},
	}, ids)
}

func TestComposeGroupNestedPath(t *testing.T) {
	root, _ := levelTree()
	levels := decomposeAll(root)

	stages := composeSubgroup(levels[1], levels[:1], []string{"name", "posts"})
	require.Len(t, stages, 2)

	assert.Equal(t, bson.D{{Key: "$group", Value: bson.D{
		{Key: "_id", Value: bson.D{{Key: "l0", Value: "$_id"}, {Key: "l1", Value: "$posts._id"}}},
		{Key: "name", Value: bson.D{{Key: "$first", Value: "$name"}}},
		{Key: "posts", Value: bson.D{{Key: "$first", Value: "$posts"}}},
		{Key: "__idx_1", Value: bson.D{{Key: "$first", Value: "$__idx_1"}}},
		{Key: "__items", Value: bson.D{{Key: "$push", Value: bson.D{
			{Key: "i", Value: "$__idx_2"},
			{Key: "v", Value: "$posts.comments"},
		}}}},
	}}}, stages[0])

	assert.Equal(t, bson.D{{Key: "$project", Value: bson.D{
		{Key: "_id", Value: "$_id.l0"},
		{Key: "name", Value: 1},
		{Key: "posts", Value: restore([]string{"posts", "comments"})},
		{Key: "__idx_1", Value: 1},
	}}}, stages[1])
}

func TestRestoreExpression(t *testing.T) {
	ordered := bson.D{{Key: "$map", Value: bson.D{
		{Key: "input", Value: bson.D{{Key: "$sortArray", Value: bson.D{
			{Key: "input", Value: bson.D{{Key: "$filter", Value: bson.D{
				{Key: "input", Value: "$__items"},
				{Key: "as", Value: "item"},
				{Key: "cond", Value: bson.D{{Key: "$ne", Value: bson.A{"$$item.i", nil}}}},
			}}}},
			{Key: "sortBy", Value: bson.D{{Key: "i", Value: 1}}},
		}}}},
		{Key: "as", Value: "item"},
		{Key: "in", Value: "$$item.v"},
	}}}

	assert.Equal(t, ordered, restore([]string{"posts"}))

	assert.Equal(t, bson.D{{Key: "$mergeObjects", Value: bson.A{
		"$a",
		bson.D{{Key: "b", Value: bson.D{{Key: "$mergeObjects", Value: bson.A{
			"$a.b",
			bson.D{{Key: "c", Value: ordered}},
		}}}}},
	}}}, restore([]string{"a", "b", "c"}))
}

func TestNestedToManyJoinsOpenNestedLevels(t *testing.T) {
	comment := model.MustDefine("Comment", "comments", "id",
		model.Column{Name: "id", Alias: "_id", Formats: formats(model.FormatID)},
		model.Column{Name: "postId", Formats: formats(model.FormatID)},
	)
	post := model.MustDefine("Post", "posts", "id",
		model.Column{Name: "id", Alias: "_id", Formats: formats(model.FormatID)},
		model.Column{Name: "authorId", Formats: formats(model.FormatID)},
		model.Column{Name: "comments", Formats: formats(model.FormatArray), Model: model.Composite(comment),
			Foreign: &model.Foreign{Local: "id", Foreign: "postId"}},
	)
	author := model.MustDefine("Author", "authors", "id",
		model.Column{Name: "id", Alias: "_id", Formats: formats(model.FormatID)},
		model.Column{Name: "posts", Formats: formats(model.FormatArray), Model: model.Composite(post),
			Foreign: &model.Foreign{Local: "id", Foreign: "authorId"}},
	)

	got, err := New().Pipeline(author, nil, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"$lookup", "$unwind", // posts
		"$lookup", "$unwind", // posts.comments
		"$group", "$project", // comments into each post
		"$group", "$project", // posts into the author
		"$project",
	}, stageNames(got))

	assert.Equal(t, bson.D{{Key: "$lookup", Value: bson.D{
		{Key: "from", Value: "comments"},
		{Key: "localField", Value: "posts._id"},
		{Key: "foreignField", Value: "postId"},
		{Key: "as", Value: "posts.comments"},
	}}}, got[2])
}
