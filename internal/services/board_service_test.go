package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/teamlounge/lounge-server/internal/dto"
	"github.com/teamlounge/lounge-server/internal/models"
	"gorm.io/gorm"
)

const (
	alice = "11111111-1111-1111-1111-111111111111"
	bob   = "22222222-2222-2222-2222-222222222222"
	carol = "33333333-3333-3333-3333-333333333333"
)

func newBoard(t *testing.T) (*BoardService, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	cats := NewCategoryService(db)
	if err := cats.SeedDefaults(context.Background()); err != nil {
		t.Fatalf("failed to seed categories: %v", err)
	}
	return NewBoardService(db, cats, nil), db
}

func TestCreatePostValidation(t *testing.T) {
	t.Parallel()
	svc, _ := newBoard(t)
	ctx := context.Background()

	if _, err := svc.CreatePost(ctx, alice, postReq("", "body", "FREE")); err == nil {
		t.Fatal("expected error for empty title")
	}
	if _, err := svc.CreatePost(ctx, alice, postReq("t", "", "FREE")); err == nil {
		t.Fatal("expected error for empty content")
	}
	if _, err := svc.CreatePost(ctx, alice, postReq("t", "body", "NOPE")); !errors.Is(err, ErrInvalidCategory) {
		t.Fatalf("expected ErrInvalidCategory, got %v", err)
	}

	post, err := svc.CreatePost(ctx, alice, postReq("  hello  ", "body", "FREE"))
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}
	if post.Title != "hello" {
		t.Fatalf("title not trimmed: %q", post.Title)
	}
	if post.ID == 0 {
		t.Fatal("post id not assigned")
	}
}

// fakeImageStore answers ObjectExists from a fixed key set.
type fakeImageStore struct {
	keys map[string]bool
}

func (f *fakeImageStore) ObjectExists(_ context.Context, key string) (bool, error) {
	return f.keys[key], nil
}

func TestCreatePostRejectsMissingImages(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	cats := NewCategoryService(db)
	if err := cats.SeedDefaults(context.Background()); err != nil {
		t.Fatalf("failed to seed categories: %v", err)
	}
	store := &fakeImageStore{keys: map[string]bool{"uploads/" + alice + "/a.png": true}}
	svc := NewBoardService(db, cats, store)
	ctx := context.Background()

	req := postReq("with image", "body", "FREE")
	req.ImageURLs = []string{"uploads/" + alice + "/never-uploaded.png"}
	if _, err := svc.CreatePost(ctx, alice, req); !errors.Is(err, ErrImageNotUploaded) {
		t.Fatalf("expected ErrImageNotUploaded, got %v", err)
	}

	req.ImageURLs = []string{"uploads/" + alice + "/a.png"}
	post, err := svc.CreatePost(ctx, alice, req)
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}

	// Updates go through the same check.
	upd := &dto.UpdatePostRequest{ImageURLs: []string{"uploads/" + alice + "/gone.png"}}
	if _, err := svc.UpdatePost(ctx, alice, post.ID, upd); !errors.Is(err, ErrImageNotUploaded) {
		t.Fatalf("expected ErrImageNotUploaded on update, got %v", err)
	}
}

func TestFeedHidesBlockedAuthors(t *testing.T) {
	t.Parallel()
	svc, db := newBoard(t)
	ctx := context.Background()
	seedProfile(t, db, alice, "앨리스")
	seedProfile(t, db, bob, "밥")

	if _, err := svc.CreatePost(ctx, alice, postReq("from alice", "a", "FREE")); err != nil {
		t.Fatalf("CreatePost: %v", err)
	}
	if _, err := svc.CreatePost(ctx, bob, postReq("from bob", "b", "FREE")); err != nil {
		t.Fatalf("CreatePost: %v", err)
	}

	block := models.Block{ID: uuid.New(), BlockerID: carol, BlockedID: bob}
	if err := db.Create(&block).Error; err != nil {
		t.Fatalf("failed to seed block: %v", err)
	}

	feed, total, err := svc.ListPosts(ctx, carol, "", 1, 20)
	if err != nil {
		t.Fatalf("ListPosts: %v", err)
	}
	if total != 1 || len(feed) != 1 {
		t.Fatalf("expected 1 visible post, got total=%d len=%d", total, len(feed))
	}
	if feed[0].AuthorID != alice {
		t.Fatalf("expected alice's post, got author %s", feed[0].AuthorID)
	}
	if feed[0].Nickname != "앨리스" {
		t.Fatalf("nickname not resolved: %q", feed[0].Nickname)
	}

	// An anonymous viewer sees everything.
	_, total, err = svc.ListPosts(ctx, "", "", 1, 20)
	if err != nil {
		t.Fatalf("ListPosts: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected 2 posts without viewer, got %d", total)
	}
}

func TestReactionToggleAndReplace(t *testing.T) {
	t.Parallel()
	svc, _ := newBoard(t)
	ctx := context.Background()

	post, err := svc.CreatePost(ctx, alice, postReq("t", "c", "FREE"))
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}

	if err := svc.React(ctx, bob, post.ID, "MEH"); !errors.Is(err, ErrInvalidReaction) {
		t.Fatalf("expected ErrInvalidReaction, got %v", err)
	}
	if err := svc.React(ctx, bob, 999, models.ReactionLike); !errors.Is(err, ErrPostNotFound) {
		t.Fatalf("expected ErrPostNotFound, got %v", err)
	}

	mustReact := func(who, what string) {
		t.Helper()
		if err := svc.React(ctx, who, post.ID, what); err != nil {
			t.Fatalf("React(%s): %v", what, err)
		}
	}
	counts := func() (like, dislike int64) {
		t.Helper()
		detail, err := svc.GetPost(ctx, post.ID, "")
		if err != nil {
			t.Fatalf("GetPost: %v", err)
		}
		return detail.LikeCount, detail.DislikeCount
	}

	mustReact(bob, models.ReactionLike)
	if l, d := counts(); l != 1 || d != 0 {
		t.Fatalf("after like: like=%d dislike=%d", l, d)
	}

	// Same reaction again toggles it off.
	mustReact(bob, models.ReactionLike)
	if l, d := counts(); l != 0 || d != 0 {
		t.Fatalf("after toggle off: like=%d dislike=%d", l, d)
	}

	// The other reaction replaces, never stacks.
	mustReact(bob, models.ReactionLike)
	mustReact(bob, models.ReactionDislike)
	if l, d := counts(); l != 0 || d != 1 {
		t.Fatalf("after replace: like=%d dislike=%d", l, d)
	}

	detail, err := svc.GetPost(ctx, post.ID, bob)
	if err != nil {
		t.Fatalf("GetPost: %v", err)
	}
	if detail.MyReaction != models.ReactionDislike {
		t.Fatalf("expected my_reaction DISLIKE, got %q", detail.MyReaction)
	}
}

func TestViewCountedOncePerViewer(t *testing.T) {
	t.Parallel()
	svc, _ := newBoard(t)
	ctx := context.Background()

	post, err := svc.CreatePost(ctx, alice, postReq("t", "c", "FREE"))
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := svc.GetPost(ctx, post.ID, bob); err != nil {
			t.Fatalf("GetPost: %v", err)
		}
	}
	detail, err := svc.GetPost(ctx, post.ID, carol)
	if err != nil {
		t.Fatalf("GetPost: %v", err)
	}
	if detail.ViewCount != 2 {
		t.Fatalf("expected 2 distinct views, got %d", detail.ViewCount)
	}
}

func TestCommentTree(t *testing.T) {
	t.Parallel()
	svc, _ := newBoard(t)
	ctx := context.Background()

	post, err := svc.CreatePost(ctx, alice, postReq("t", "c", "FREE"))
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}
	other, err := svc.CreatePost(ctx, alice, postReq("t2", "c", "FREE"))
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}

	root, err := svc.CreateComment(ctx, bob, post.ID, &dto.CreateCommentRequest{Content: "first"})
	if err != nil {
		t.Fatalf("CreateComment: %v", err)
	}
	reply, err := svc.CreateComment(ctx, carol, post.ID, &dto.CreateCommentRequest{Content: "reply", ParentID: &root.ID})
	if err != nil {
		t.Fatalf("CreateComment reply: %v", err)
	}

	// Replies nest one level only.
	if _, err := svc.CreateComment(ctx, alice, post.ID, &dto.CreateCommentRequest{Content: "deep", ParentID: &reply.ID}); !errors.Is(err, ErrInvalidParent) {
		t.Fatalf("expected ErrInvalidParent for nested reply, got %v", err)
	}
	// Parent must belong to the same post.
	if _, err := svc.CreateComment(ctx, alice, other.ID, &dto.CreateCommentRequest{Content: "x", ParentID: &root.ID}); !errors.Is(err, ErrInvalidParent) {
		t.Fatalf("expected ErrInvalidParent for cross-post parent, got %v", err)
	}

	tree, err := svc.ListComments(ctx, post.ID, "")
	if err != nil {
		t.Fatalf("ListComments: %v", err)
	}
	if len(tree) != 1 || len(tree[0].Replies) != 1 {
		t.Fatalf("unexpected tree shape: roots=%d", len(tree))
	}
	if tree[0].Replies[0].Content != "reply" {
		t.Fatalf("unexpected reply content %q", tree[0].Replies[0].Content)
	}
}

func TestDeleteCommentKeepsThreadShape(t *testing.T) {
	t.Parallel()
	svc, _ := newBoard(t)
	ctx := context.Background()

	post, err := svc.CreatePost(ctx, alice, postReq("t", "c", "FREE"))
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}
	root, err := svc.CreateComment(ctx, bob, post.ID, &dto.CreateCommentRequest{Content: "parent"})
	if err != nil {
		t.Fatalf("CreateComment: %v", err)
	}
	if _, err := svc.CreateComment(ctx, carol, post.ID, &dto.CreateCommentRequest{Content: "child", ParentID: &root.ID}); err != nil {
		t.Fatalf("CreateComment reply: %v", err)
	}

	// With a reply present the parent is blanked, not removed.
	if err := svc.DeleteComment(ctx, bob, root.ID); err != nil {
		t.Fatalf("DeleteComment: %v", err)
	}
	tree, err := svc.ListComments(ctx, post.ID, "")
	if err != nil {
		t.Fatalf("ListComments: %v", err)
	}
	if len(tree) != 1 {
		t.Fatalf("expected placeholder root, got %d roots", len(tree))
	}
	if !tree[0].IsDeleted || tree[0].Content != "" {
		t.Fatalf("expected blanked placeholder, got deleted=%v content=%q", tree[0].IsDeleted, tree[0].Content)
	}
	if len(tree[0].Replies) != 1 {
		t.Fatalf("reply lost, got %d", len(tree[0].Replies))
	}

	// A leaf comment goes away for real.
	leaf := tree[0].Replies[0]
	if err := svc.DeleteComment(ctx, carol, leaf.ID); err != nil {
		t.Fatalf("DeleteComment leaf: %v", err)
	}
	tree, err = svc.ListComments(ctx, post.ID, "")
	if err != nil {
		t.Fatalf("ListComments: %v", err)
	}
	if len(tree) != 1 || len(tree[0].Replies) != 0 {
		t.Fatalf("expected lone placeholder, roots=%d", len(tree))
	}
}

func TestOwnershipGuards(t *testing.T) {
	t.Parallel()
	svc, _ := newBoard(t)
	ctx := context.Background()

	post, err := svc.CreatePost(ctx, alice, postReq("t", "c", "FREE"))
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}
	comment, err := svc.CreateComment(ctx, alice, post.ID, &dto.CreateCommentRequest{Content: "mine"})
	if err != nil {
		t.Fatalf("CreateComment: %v", err)
	}

	if _, err := svc.UpdatePost(ctx, bob, post.ID, &dto.UpdatePostRequest{Title: "hijack"}); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner on update, got %v", err)
	}
	if err := svc.DeletePost(ctx, bob, post.ID); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner on delete, got %v", err)
	}
	if err := svc.DeleteComment(ctx, bob, comment.ID); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner on comment delete, got %v", err)
	}

	updated, err := svc.UpdatePost(ctx, alice, post.ID, &dto.UpdatePostRequest{Title: "new title"})
	if err != nil {
		t.Fatalf("UpdatePost: %v", err)
	}
	if updated.Title != "new title" {
		t.Fatalf("title not updated: %q", updated.Title)
	}
	if err := svc.DeletePost(ctx, alice, post.ID); err != nil {
		t.Fatalf("DeletePost: %v", err)
	}
	if _, err := svc.GetPost(ctx, post.ID, ""); !errors.Is(err, ErrPostNotFound) {
		t.Fatalf("expected ErrPostNotFound after delete, got %v", err)
	}
}

func TestAdminDeletePost(t *testing.T) {
	t.Parallel()
	svc, _ := newBoard(t)
	ctx := context.Background()

	post, err := svc.CreatePost(ctx, alice, postReq("t", "c", "FREE"))
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}
	if err := svc.AdminDeletePost(ctx, post.ID); err != nil {
		t.Fatalf("AdminDeletePost: %v", err)
	}
	if err := svc.AdminDeletePost(ctx, post.ID); !errors.Is(err, ErrPostNotFound) {
		t.Fatalf("expected ErrPostNotFound, got %v", err)
	}
}

func TestCategoryLifecycle(t *testing.T) {
	t.Parallel()
	svc, db := newBoard(t)
	ctx := context.Background()
	cats := NewCategoryService(db)

	created, err := cats.Create(ctx, &dto.CategoryRequest{ID: "notice", Label: "공지사항"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID != "NOTICE" {
		t.Fatalf("slug not uppercased: %q", created.ID)
	}

	if _, err := svc.CreatePost(ctx, alice, postReq("t", "c", "NOTICE")); err != nil {
		t.Fatalf("CreatePost: %v", err)
	}
	if err := cats.Delete(ctx, "NOTICE"); !errors.Is(err, ErrCategoryInUse) {
		t.Fatalf("expected ErrCategoryInUse, got %v", err)
	}
	if err := cats.Delete(ctx, "QA"); err != nil {
		t.Fatalf("Delete empty category: %v", err)
	}
	if err := cats.Delete(ctx, "QA"); !errors.Is(err, ErrCategoryNotFound) {
		t.Fatalf("expected ErrCategoryNotFound, got %v", err)
	}
}
