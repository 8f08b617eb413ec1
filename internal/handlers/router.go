package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/bloglite/bloglite/internal/middleware"
)

// RegisterRoutes mounts the /api/v1 surface on router.
func RegisterRoutes(router gin.IRouter, users *UserHandler, feed *FeedHandler, jwtConfig *middleware.JWTConfig) {
	api := router.Group("/api/v1")

	public := api.Group("/users")
	{
		public.POST("/register", users.Register)
		public.POST("/login", users.Login)
	}

	protected := api.Group("")
	protected.Use(middleware.NewJWTAuth(jwtConfig))
	{
		protected.GET("/feed", feed.GetFeed)

		protected.GET("/users/me", users.GetMe)
		protected.PUT("/users/me", users.UpdateMe)
		protected.DELETE("/users/me", users.DeleteMe)
		protected.GET("/users/:id", users.GetProfile)
		protected.GET("/users/:id/followers", users.GetFollowers)
		protected.GET("/users/:id/following", users.GetFollowing)
		protected.POST("/users/:id/follow", users.Follow)
		protected.DELETE("/users/:id/follow", users.Unfollow)

		protected.POST("/posts", feed.CreatePost)
		protected.GET("/posts/:id", feed.GetPost)
		protected.PUT("/posts/:id", feed.UpdatePost)
		protected.DELETE("/posts/:id", feed.DeletePost)
		protected.PUT("/posts/:id/like", feed.LikePost)
		protected.PUT("/posts/:id/dislike", feed.DislikePost)
		protected.DELETE("/posts/:id/reaction", feed.RemoveReaction)
		protected.GET("/posts/:id/engagement", feed.GetEngagement)
		protected.GET("/posts/:id/comments", feed.GetPostComments)
		protected.POST("/posts/:id/comments", feed.CreateComment)
		protected.DELETE("/comments/:id", feed.DeleteComment)

		protected.GET("/search/users", users.SearchUsers)
		protected.GET("/search/posts", feed.SearchPosts)
		protected.GET("/export/posts", feed.ExportPosts)
	}
}
