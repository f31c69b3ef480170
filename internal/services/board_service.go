package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/teamlounge/lounge-server/internal/dto"
	"github.com/teamlounge/lounge-server/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrPostNotFound    = errors.New("post not found")
	ErrCommentNotFound = errors.New("comment not found")
	ErrNotOwner        = errors.New("not the author of this content")
	ErrInvalidCategory = errors.New("unknown category")
	ErrInvalidReaction  = errors.New("reaction must be LIKE or DISLIKE")
	ErrInvalidParent    = errors.New("parent comment does not belong to this post")
	ErrImageNotUploaded = errors.New("image has not been uploaded")
)

// ImageChecker verifies an attachment key exists in object storage; the S3
// uploader implements it.
type ImageChecker interface {
	ObjectExists(ctx context.Context, key string) (bool, error)
}

// PostSummary is a feed row: the post plus its author nickname and counters.
type PostSummary struct {
	models.Post
	Nickname     string `json:"nickname"`
	CommentCount int64  `json:"comment_count"`
	ViewCount    int64  `json:"view_count"`
	LikeCount    int64  `json:"like_count"`
	DislikeCount int64  `json:"dislike_count"`
}

// PostDetail adds the viewer's own reaction.
type PostDetail struct {
	PostSummary
	MyReaction string `json:"my_reaction,omitempty"`
}

// CommentNode is a top-level comment with its replies.
type CommentNode struct {
	models.Comment
	Nickname string        `json:"nickname"`
	Replies  []CommentNode `json:"replies,omitempty"`
}

// BoardService handles posts, comments, reactions and view tracking. Every
// author/actor column it writes holds an anon id.
type BoardService struct {
	db         *gorm.DB
	categories *CategoryService
	images     ImageChecker
}

// NewBoardService wires the board; images may be nil when no object storage
// is configured, which skips attachment verification.
func NewBoardService(db *gorm.DB, categories *CategoryService, images ImageChecker) *BoardService {
	return &BoardService{db: db, categories: categories, images: images}
}

// checkImages rejects attachment keys that were never uploaded, so a post
// cannot reference a presigned URL the client abandoned.
func (s *BoardService) checkImages(ctx context.Context, keys []string) error {
	if s.images == nil {
		return nil
	}
	for _, key := range keys {
		exists, err := s.images.ObjectExists(ctx, key)
		if err != nil {
			return fmt.Errorf("failed to check image %s: %w", key, err)
		}
		if !exists {
			return ErrImageNotUploaded
		}
	}
	return nil
}

func (s *BoardService) CreatePost(ctx context.Context, authorID string, req *dto.CreatePostRequest) (*models.Post, error) {
	title := strings.TrimSpace(req.Title)
	content := strings.TrimSpace(req.Content)
	if title == "" || len(title) > 200 {
		return nil, errors.New("title must be 1-200 characters")
	}
	if content == "" {
		return nil, errors.New("content is required")
	}
	ok, err := s.categories.Exists(ctx, req.Category)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidCategory
	}

	post := &models.Post{
		AuthorID: authorID,
		Title:    title,
		Content:  content,
		Category: req.Category,
	}
	if len(req.ImageURLs) > 0 {
		if err := s.checkImages(ctx, req.ImageURLs); err != nil {
			return nil, err
		}
		raw, err := json.Marshal(req.ImageURLs)
		if err != nil {
			return nil, fmt.Errorf("failed to encode image urls: %w", err)
		}
		post.ImageURLs = datatypes.JSON(raw)
	}

	if err := s.db.WithContext(ctx).Create(post).Error; err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}
	return post, nil
}

// ListPosts is the board feed: newest first, optional category filter, and
// posts from authors the viewer has blocked are hidden.
func (s *BoardService) ListPosts(ctx context.Context, viewerID, category string, page, limit int) ([]PostSummary, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Post{})
	if category != "" {
		query = query.Where("category = ?", category)
	}
	if viewerID != "" {
		blocked := s.db.Model(&models.Block{}).Select("blocked_id").Where("blocker_id = ?", viewerID)
		query = query.Where("author_id NOT IN (?)", blocked)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count posts: %w", err)
	}

	var posts []models.Post
	err := query.Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&posts).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list posts: %w", err)
	}

	summaries, err := s.decorate(ctx, posts)
	if err != nil {
		return nil, 0, err
	}
	return summaries, total, nil
}

func (s *BoardService) MyPosts(ctx context.Context, authorID string, page, limit int) ([]PostSummary, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Post{}).Where("author_id = ?", authorID)

	var total int64
	query.Count(&total)

	var posts []models.Post
	err := query.Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&posts).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list posts: %w", err)
	}

	summaries, err := s.decorate(ctx, posts)
	if err != nil {
		return nil, 0, err
	}
	return summaries, total, nil
}

// GetPost loads one post with counters and records the viewer's first view.
func (s *BoardService) GetPost(ctx context.Context, postID int64, viewerID string) (*PostDetail, error) {
	var post models.Post
	if err := s.db.WithContext(ctx).First(&post, "id = ?", postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("failed to fetch post: %w", err)
	}

	if viewerID != "" {
		// Unique index drops repeat views.
		view := models.PostView{PostID: postID, UserID: viewerID}
		s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&view)
	}

	summaries, err := s.decorate(ctx, []models.Post{post})
	if err != nil {
		return nil, err
	}
	detail := &PostDetail{PostSummary: summaries[0]}

	if viewerID != "" {
		var reaction models.PostReaction
		err := s.db.WithContext(ctx).
			Where("post_id = ? AND user_id = ?", postID, viewerID).
			First(&reaction).Error
		if err == nil {
			detail.MyReaction = reaction.Reaction
		}
	}
	return detail, nil
}

func (s *BoardService) UpdatePost(ctx context.Context, authorID string, postID int64, req *dto.UpdatePostRequest) (*models.Post, error) {
	var post models.Post
	if err := s.db.WithContext(ctx).First(&post, "id = ?", postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("failed to fetch post: %w", err)
	}
	if post.AuthorID != authorID {
		return nil, ErrNotOwner
	}

	if req.Category != "" && req.Category != post.Category {
		ok, err := s.categories.Exists(ctx, req.Category)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrInvalidCategory
		}
		post.Category = req.Category
	}
	if title := strings.TrimSpace(req.Title); title != "" {
		post.Title = title
	}
	if content := strings.TrimSpace(req.Content); content != "" {
		post.Content = content
	}
	if req.ImageURLs != nil {
		if err := s.checkImages(ctx, req.ImageURLs); err != nil {
			return nil, err
		}
		raw, err := json.Marshal(req.ImageURLs)
		if err != nil {
			return nil, fmt.Errorf("failed to encode image urls: %w", err)
		}
		post.ImageURLs = datatypes.JSON(raw)
	}

	if err := s.db.WithContext(ctx).Save(&post).Error; err != nil {
		return nil, fmt.Errorf("failed to update post: %w", err)
	}
	return &post, nil
}

func (s *BoardService) DeletePost(ctx context.Context, authorID string, postID int64) error {
	var post models.Post
	if err := s.db.WithContext(ctx).First(&post, "id = ?", postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPostNotFound
		}
		return fmt.Errorf("failed to fetch post: %w", err)
	}
	if post.AuthorID != authorID {
		return ErrNotOwner
	}
	return s.db.WithContext(ctx).Delete(&post).Error
}

// AdminListPosts skips block filtering and shows everything live.
func (s *BoardService) AdminListPosts(ctx context.Context, page, limit int) ([]PostSummary, int64, error) {
	return s.ListPosts(ctx, "", "", page, limit)
}

func (s *BoardService) AdminDeletePost(ctx context.Context, postID int64) error {
	result := s.db.WithContext(ctx).Delete(&models.Post{}, "id = ?", postID)
	if result.Error != nil {
		return fmt.Errorf("failed to delete post: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrPostNotFound
	}
	return nil
}

func (s *BoardService) CreateComment(ctx context.Context, authorID string, postID int64, req *dto.CreateCommentRequest) (*models.Comment, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" || len(content) > 1000 {
		return nil, errors.New("comment must be 1-1000 characters")
	}

	var post models.Post
	if err := s.db.WithContext(ctx).First(&post, "id = ?", postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("failed to fetch post: %w", err)
	}

	if req.ParentID != nil {
		var parent models.Comment
		if err := s.db.WithContext(ctx).First(&parent, "id = ?", *req.ParentID).Error; err != nil {
			return nil, ErrInvalidParent
		}
		if parent.PostID != postID || parent.ParentID != nil {
			// Replies only nest one level.
			return nil, ErrInvalidParent
		}
	}

	comment := &models.Comment{
		PostID:   postID,
		ParentID: req.ParentID,
		AuthorID: authorID,
		Content:  content,
	}
	if err := s.db.WithContext(ctx).Create(comment).Error; err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}
	return comment, nil
}

// ListComments returns the post's comment tree, oldest first. Removed
// comments that still have replies stay as blanked placeholders.
func (s *BoardService) ListComments(ctx context.Context, postID int64, viewerID string) ([]CommentNode, error) {
	query := s.db.WithContext(ctx).Where("post_id = ?", postID)
	if viewerID != "" {
		blocked := s.db.Model(&models.Block{}).Select("blocked_id").Where("blocker_id = ?", viewerID)
		query = query.Where("author_id NOT IN (?)", blocked)
	}

	var comments []models.Comment
	if err := query.Order("created_at ASC").Find(&comments).Error; err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}

	nicknames, err := s.nicknamesFor(ctx, commentAuthors(comments))
	if err != nil {
		return nil, err
	}

	roots := make([]CommentNode, 0)
	index := make(map[int64]int)
	for _, c := range comments {
		if c.IsDeleted {
			c.Content = ""
		}
		if c.ParentID == nil {
			roots = append(roots, CommentNode{Comment: c, Nickname: nicknames[c.AuthorID]})
			index[c.ID] = len(roots) - 1
		}
	}
	for _, c := range comments {
		if c.ParentID == nil {
			continue
		}
		if c.IsDeleted {
			c.Content = ""
		}
		if i, ok := index[*c.ParentID]; ok {
			roots[i].Replies = append(roots[i].Replies, CommentNode{Comment: c, Nickname: nicknames[c.AuthorID]})
		}
	}
	return roots, nil
}

// DeleteComment removes a comment; when replies exist the row is kept with
// IsDeleted set so the thread keeps its shape.
func (s *BoardService) DeleteComment(ctx context.Context, authorID string, commentID int64) error {
	var comment models.Comment
	if err := s.db.WithContext(ctx).First(&comment, "id = ?", commentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCommentNotFound
		}
		return fmt.Errorf("failed to fetch comment: %w", err)
	}
	if comment.AuthorID != authorID {
		return ErrNotOwner
	}

	var replies int64
	s.db.WithContext(ctx).Model(&models.Comment{}).Where("parent_id = ?", commentID).Count(&replies)
	if replies > 0 {
		return s.db.WithContext(ctx).Model(&comment).Update("is_deleted", true).Error
	}
	return s.db.WithContext(ctx).Delete(&comment).Error
}

// React toggles the viewer's LIKE/DISLIKE on a post: same reaction removes
// it, the other one replaces it.
func (s *BoardService) React(ctx context.Context, userID string, postID int64, reaction string) error {
	if reaction != models.ReactionLike && reaction != models.ReactionDislike {
		return ErrInvalidReaction
	}

	var post models.Post
	if err := s.db.WithContext(ctx).First(&post, "id = ?", postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPostNotFound
		}
		return fmt.Errorf("failed to fetch post: %w", err)
	}

	var existing models.PostReaction
	err := s.db.WithContext(ctx).
		Where("post_id = ? AND user_id = ?", postID, userID).
		First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		row := models.PostReaction{PostID: postID, UserID: userID, Reaction: reaction}
		return s.db.WithContext(ctx).Create(&row).Error
	case err != nil:
		return fmt.Errorf("failed to fetch reaction: %w", err)
	case existing.Reaction == reaction:
		return s.db.WithContext(ctx).Delete(&existing).Error
	default:
		return s.db.WithContext(ctx).Model(&existing).Update("reaction", reaction).Error
	}
}

func (s *BoardService) decorate(ctx context.Context, posts []models.Post) ([]PostSummary, error) {
	summaries := make([]PostSummary, len(posts))
	if len(posts) == 0 {
		return summaries, nil
	}

	ids := make([]int64, len(posts))
	authors := make([]string, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
		authors[i] = p.AuthorID
	}

	nicknames, err := s.nicknamesFor(ctx, authors)
	if err != nil {
		return nil, err
	}

	comments, err := s.countBy(ctx, &models.Comment{}, "post_id", ids, "")
	if err != nil {
		return nil, err
	}
	views, err := s.countBy(ctx, &models.PostView{}, "post_id", ids, "")
	if err != nil {
		return nil, err
	}
	likes, err := s.countBy(ctx, &models.PostReaction{}, "post_id", ids, models.ReactionLike)
	if err != nil {
		return nil, err
	}
	dislikes, err := s.countBy(ctx, &models.PostReaction{}, "post_id", ids, models.ReactionDislike)
	if err != nil {
		return nil, err
	}

	for i, p := range posts {
		summaries[i] = PostSummary{
			Post:         p,
			Nickname:     nicknames[p.AuthorID],
			CommentCount: comments[p.ID],
			ViewCount:    views[p.ID],
			LikeCount:    likes[p.ID],
			DislikeCount: dislikes[p.ID],
		}
	}
	return summaries, nil
}

func (s *BoardService) countBy(ctx context.Context, model interface{}, column string, ids []int64, reaction string) (map[int64]int64, error) {
	type row struct {
		PostID int64
		Count  int64
	}
	query := s.db.WithContext(ctx).Model(model).
		Select(column + " as post_id, count(*) as count").
		Where(column+" IN ?", ids)
	if reaction != "" {
		query = query.Where("reaction = ?", reaction)
	}
	var rows []row
	if err := query.Group(column).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count %s: %w", column, err)
	}
	counts := make(map[int64]int64, len(rows))
	for _, r := range rows {
		counts[r.PostID] = r.Count
	}
	return counts, nil
}

func (s *BoardService) nicknamesFor(ctx context.Context, ids []string) (map[string]string, error) {
	if len(ids) == 0 {
		return map[string]string{}, nil
	}
	var profiles []models.Profile
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&profiles).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch nicknames: %w", err)
	}
	out := make(map[string]string, len(profiles))
	for _, p := range profiles {
		if p.Nickname != nil {
			out[p.ID] = *p.Nickname
		}
	}
	return out, nil
}

func commentAuthors(comments []models.Comment) []string {
	seen := make(map[string]bool, len(comments))
	out := make([]string, 0, len(comments))
	for _, c := range comments {
		if !seen[c.AuthorID] {
			seen[c.AuthorID] = true
			out = append(out, c.AuthorID)
		}
	}
	return out
}
