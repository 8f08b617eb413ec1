package handlers

import (
	"context"
	"encoding/csv"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bloglite/bloglite/internal/services"
	"github.com/bloglite/bloglite/pkg/logger"
)

type FeedHandler struct {
	feedService       *services.FeedService
	postService       *services.PostService
	engagementService *services.EngagementService
	logger            *logger.Logger
}

func NewFeedHandler(feedService *services.FeedService, postService *services.PostService, engagementService *services.EngagementService, logger *logger.Logger) *FeedHandler {
	return &FeedHandler{
		feedService:       feedService,
		postService:       postService,
		engagementService: engagementService,
		logger:            logger,
	}
}

func (h *FeedHandler) GetFeed(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	feed, err := h.feedService.BuildFeed(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, feed)
}

func (h *FeedHandler) CreatePost(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	var req services.PostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	post, err := h.postService.CreatePost(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Post created successfully",
		"post":    post,
	})
}

func (h *FeedHandler) GetPost(c *gin.Context) {
	post, err := h.postService.GetPostByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"post": post})
}

func (h *FeedHandler) UpdatePost(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	var req services.PostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	post, err := h.postService.UpdatePost(c.Request.Context(), userID, c.Param("id"), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Post updated successfully",
		"post":    post,
	})
}

func (h *FeedHandler) DeletePost(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	if err := h.postService.DeletePost(c.Request.Context(), userID, c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Post deleted successfully"})
}

func (h *FeedHandler) LikePost(c *gin.Context) {
	h.react(c, h.engagementService.SetLike, "Post liked successfully")
}

func (h *FeedHandler) DislikePost(c *gin.Context) {
	h.react(c, h.engagementService.SetDislike, "Post disliked successfully")
}

func (h *FeedHandler) RemoveReaction(c *gin.Context) {
	h.react(c, h.engagementService.RemoveReaction, "Reaction removed successfully")
}

func (h *FeedHandler) react(c *gin.Context, apply func(ctx context.Context, userID, postID string) error, message string) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	postID := c.Param("id")
	if err := apply(c.Request.Context(), userID, postID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	engagement, err := h.engagementService.CountEngagement(c.Request.Context(), postID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    message,
		"engagement": engagement,
	})
}

func (h *FeedHandler) GetEngagement(c *gin.Context) {
	engagement, err := h.engagementService.CountEngagement(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"engagement": engagement})
}

func (h *FeedHandler) CreateComment(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	var req services.CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	comment, err := h.engagementService.AddComment(c.Request.Context(), userID, c.Param("id"), req.Content)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Comment created successfully",
		"comment": comment,
	})
}

func (h *FeedHandler) GetPostComments(c *gin.Context) {
	comments, err := h.engagementService.ListComments(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"comments": comments,
		"count":    len(comments),
	})
}

func (h *FeedHandler) DeleteComment(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	if err := h.engagementService.DeleteComment(c.Request.Context(), c.Param("id"), userID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Comment deleted successfully"})
}

func (h *FeedHandler) SearchPosts(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Search query is required"})
		return
	}
	offset, limit := pagination(c)

	posts, err := h.postService.SearchPosts(c.Request.Context(), query, offset, limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"posts":  posts,
		"offset": offset,
		"limit":  limit,
	})
}

// ExportPosts returns the caller's posts as JSON, or as a CSV attachment when
// format=csv.
func (h *FeedHandler) ExportPosts(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	records, err := h.postService.ExportPosts(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	if c.Query("format") != "csv" {
		c.JSON(http.StatusOK, gin.H{"posts": records})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="posts.csv"`)
	c.Header("Content-Type", "text/csv")
	c.Status(http.StatusOK)

	w := csv.NewWriter(c.Writer)
	_ = w.Write([]string{"sno", "id", "title", "preview", "content", "last_modified", "likes", "dislikes", "comments"})
	for _, r := range records {
		_ = w.Write([]string{
			strconv.Itoa(r.SNo),
			r.ID.String(),
			r.Title,
			r.Preview,
			r.Content,
			r.LastModified.UTC().Format(time.RFC3339),
			strconv.FormatInt(r.Likes, 10),
			strconv.FormatInt(r.Dislikes, 10),
			strconv.FormatInt(r.Comments, 10),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		h.logger.WithError(err).Error("Failed to write CSV export")
	}
}
