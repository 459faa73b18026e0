package main

import (
	"fmt"
	"html/template"
	"log"
	"os"
	"path/filepath"
	"time"
	"yatube/internal/cache"
	"yatube/internal/db"
	"yatube/internal/feed"
	"yatube/internal/handlers"
	"yatube/internal/middleware"
	"yatube/internal/services"

	"github.com/gin-contrib/multitemplate"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, finding env vars from system")
	}

	// Initialize Database
	db.Init()

	// Page cache for the index feed
	pageCache, err := cache.New(500)
	if err != nil {
		log.Fatalf("Failed to create page cache: %v", err)
	}

	mediaDir := os.Getenv("MEDIA_DIR")
	if mediaDir == "" {
		mediaDir = "./media"
	}

	// Initialize Gin
	r := gin.Default()

	// Setup Sessions
	secret := os.Getenv("SESSION_SECRET")
	if secret == "" {
		secret = "secret_key_change_me"
	}
	store := cookie.NewStore([]byte(secret))
	r.Use(sessions.Sessions("yatube_session", store))

	// Load Templates using Multitemplate to avoid collision and allow handler names
	r.HTMLRender = loadTemplates("./web/templates")

	// Static Assets and uploaded media
	r.Static("/static", "./web/static")
	r.Static("/media", mediaDir)

	// Middleware
	r.Use(middleware.LoadUser())

	// Handlers
	assembler := feed.NewAssembler(db.DB)
	followService := services.NewFollowService(db.DB)
	imageService := services.NewImageService(mediaDir)

	authHandler := handlers.NewAuthHandler()
	postHandler := handlers.NewPostHandler(pageCache, assembler, imageService)
	groupHandler := handlers.NewGroupHandler(assembler)
	profileHandler := handlers.NewProfileHandler(assembler, followService)

	// Public Routes
	r.GET("/", postHandler.Index)
	r.GET("/group/:slug", groupHandler.ListBySlug)
	r.GET("/groups", groupHandler.ListGroups)
	r.GET("/u/:username", profileHandler.Profile)
	r.GET("/p/:id", postHandler.Detail)

	r.GET("/signup", authHandler.ShowRegister)
	r.POST("/signup", authHandler.Register)
	r.GET("/login", authHandler.ShowLogin)
	r.POST("/login", authHandler.Login)
	r.GET("/logout", authHandler.Logout)

	// Protected Routes
	authorized := r.Group("/")
	authorized.Use(middleware.AuthRequired())
	{
		authorized.GET("/new", postHandler.ShowCreate)
		authorized.POST("/new", postHandler.Create)
		authorized.GET("/p/:id/edit", postHandler.ShowEdit)
		authorized.POST("/p/:id/edit", postHandler.Update)
		authorized.POST("/p/:id/delete", postHandler.Delete)
		authorized.POST("/p/:id/comment", postHandler.CreateComment)

		authorized.GET("/follow", profileHandler.FollowIndex)
		authorized.POST("/u/:username/follow", profileHandler.Follow)
		authorized.POST("/u/:username/unfollow", profileHandler.Unfollow)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Printf("Yatube server starting on :%s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatal(err)
	}
}

func loadTemplates(templatesDir string) multitemplate.Renderer {
	r := multitemplate.NewRenderer()

	layouts, err := filepath.Glob(templatesDir + "/layouts/*.html")
	if err != nil {
		panic(err)
	}

	includes, err := filepath.Glob(templatesDir + "/includes/*.html")
	if err != nil {
		panic(err)
	}

	// Helper to assemble files
	assemble := func(view string) []string {
		files := make([]string, 0)
		files = append(files, layouts...)
		files = append(files, includes...)
		files = append(files, view)
		return files
	}

	// FuncMap
	funcMap := template.FuncMap{
		"add": func(a, b int) int {
			return a + b
		},
		"deref": func(p *uint) uint {
			if p == nil {
				return 0
			}
			return *p
		},
		"timeAgo": func(t interface{}) string {
			var timeVal time.Time
			switch v := t.(type) {
			case time.Time:
				timeVal = v
			default:
				return ""
			}

			duration := time.Since(timeVal)
			seconds := int(duration.Seconds())

			if seconds < 60 {
				return fmt.Sprintf("%ds ago", seconds)
			} else if seconds < 3600 {
				return fmt.Sprintf("%dm ago", seconds/60)
			} else if seconds < 86400 {
				return fmt.Sprintf("%dh ago", seconds/3600)
			} else if seconds < 2592000 {
				return fmt.Sprintf("%dd ago", seconds/86400)
			} else if seconds < 31536000 {
				return fmt.Sprintf("%dmo ago", seconds/2592000)
			}
			return fmt.Sprintf("%dy ago", seconds/31536000)
		},
	}

	// Manual registration to ensure keys match handler expectation
	// Auth
	r.AddFromFilesFuncs("auth/login.html", funcMap, assemble(templatesDir+"/views/auth/login.html")...)
	r.AddFromFilesFuncs("auth/register.html", funcMap, assemble(templatesDir+"/views/auth/register.html")...)

	// Feeds
	r.AddFromFilesFuncs("feed/index.html", funcMap, assemble(templatesDir+"/views/feed/index.html")...)
	r.AddFromFilesFuncs("feed/group.html", funcMap, assemble(templatesDir+"/views/feed/group.html")...)
	r.AddFromFilesFuncs("feed/follow.html", funcMap, assemble(templatesDir+"/views/feed/follow.html")...)

	// Posts
	r.AddFromFilesFuncs("post/detail.html", funcMap, assemble(templatesDir+"/views/post/detail.html")...)
	r.AddFromFilesFuncs("post/form.html", funcMap, assemble(templatesDir+"/views/post/form.html")...)

	// Users
	r.AddFromFilesFuncs("user/profile.html", funcMap, assemble(templatesDir+"/views/user/profile.html")...)

	// Groups
	r.AddFromFilesFuncs("group/list.html", funcMap, assemble(templatesDir+"/views/group/list.html")...)

	// Error
	r.AddFromFilesFuncs("error.html", funcMap, assemble(templatesDir+"/views/error.html")...)

	return r
}
