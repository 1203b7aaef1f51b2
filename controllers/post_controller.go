package controllers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/agroadvisor/community/middleware"
	"github.com/agroadvisor/community/repository"
	"github.com/agroadvisor/community/services"
	"github.com/agroadvisor/community/utils"
)

// PostController serves the caller's own community posts.
type PostController struct {
	posts        *services.PostService
	maxBodyBytes int64
}

// NewPostController creates a PostController. maxBodyBytes caps a create or
// update request body; zero disables the cap.
func NewPostController(posts *services.PostService, maxBodyBytes int64) *PostController {
	return &PostController{posts: posts, maxBodyBytes: maxBodyBytes}
}

type postForm struct {
	Title              string                  `form:"title" json:"title" binding:"max=1000"`
	Content            string                  `form:"content" json:"content"`
	Category           string                  `form:"category" json:"category" binding:"max=64"`
	Tags               string                  `form:"tags" json:"tags" binding:"max=1000"`
	RemovedAttachments string                  `form:"removedAttachments" json:"removedAttachments"`
	Attachments        []*multipart.FileHeader `form:"attachments" json:"-"`
}

// ListMyPosts returns a page of the caller's posts.
func (p *PostController) ListMyPosts(ctx *gin.Context) {
	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	page, limit := parsePagination(ctx.Query("page"), ctx.Query("limit"))
	result, err := p.posts.ListMine(ctx.Request.Context(), userID, services.ListQuery{
		Page:     page,
		Limit:    limit,
		Search:   ctx.Query("search"),
		Category: ctx.Query("category"),
	})
	if err != nil {
		p.fail(ctx, err, 50020, "list posts")
		return
	}
	ctx.JSON(http.StatusOK, result)
}

// CreatePost creates a post with optional attachments from a multipart form.
func (p *PostController) CreatePost(ctx *gin.Context) {
	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40111, "unauthorized")
		return
	}

	form, files, err := p.bindPostForm(ctx)
	if err != nil {
		p.fail(ctx, err, 50021, "read post form")
		return
	}
	defer closeAll(files)

	post, err := p.posts.Create(ctx.Request.Context(), userID, toInput(form, files))
	if err != nil {
		p.fail(ctx, err, 50021, "create post")
		return
	}
	ctx.JSON(http.StatusCreated, post)
}

// UpdatePost edits an owned post, detaching removed attachments and adding new ones.
func (p *PostController) UpdatePost(ctx *gin.Context) {
	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40112, "unauthorized")
		return
	}
	postID, ok := parseID(ctx.Param("id"))
	if !ok {
		utils.Error(ctx, http.StatusNotFound, 40420, "Post not found")
		return
	}

	form, files, err := p.bindPostForm(ctx)
	if err != nil {
		p.fail(ctx, err, 50022, "read post form")
		return
	}
	defer closeAll(files)

	removed, err := services.ParseRemovedAttachments(form.RemovedAttachments)
	if err != nil {
		p.fail(ctx, err, 50022, "update post")
		return
	}

	post, err := p.posts.Update(ctx.Request.Context(), userID, postID, toInput(form, files), removed)
	if err != nil {
		p.fail(ctx, err, 50022, "update post")
		return
	}
	ctx.JSON(http.StatusOK, post)
}

// DeletePost removes an owned post and its attachments.
func (p *PostController) DeletePost(ctx *gin.Context) {
	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40113, "unauthorized")
		return
	}
	postID, ok := parseID(ctx.Param("id"))
	if !ok {
		utils.Error(ctx, http.StatusNotFound, 40420, "Post not found")
		return
	}

	if err := p.posts.Delete(ctx.Request.Context(), userID, postID); err != nil {
		p.fail(ctx, err, 50023, "delete post")
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Post deleted successfully"})
}

type openedFile struct {
	header *multipart.FileHeader
	file   multipart.File
}

func (p *PostController) bindPostForm(ctx *gin.Context) (*postForm, []openedFile, error) {
	if p.maxBodyBytes > 0 {
		ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, p.maxBodyBytes)
	}

	var form postForm
	if err := ctx.ShouldBind(&form); err != nil {
		if isBodyTooLarge(err) {
			return nil, nil, err
		}
		return nil, nil, &services.ValidationError{Message: "invalid request payload"}
	}

	files := make([]openedFile, 0, len(form.Attachments))
	for _, h := range form.Attachments {
		f, err := h.Open()
		if err != nil {
			closeAll(files)
			return nil, nil, err
		}
		files = append(files, openedFile{header: h, file: f})
	}
	return &form, files, nil
}

func toInput(form *postForm, files []openedFile) services.PostInput {
	in := services.PostInput{
		Title:    form.Title,
		Content:  form.Content,
		Category: form.Category,
		Tags:     form.Tags,
	}
	for _, f := range files {
		in.Files = append(in.Files, services.FileInput{
			Name: f.header.Filename,
			Size: f.header.Size,
			Body: f.file,
		})
	}
	return in
}

func closeAll(files []openedFile) {
	for _, f := range files {
		_ = f.file.Close()
	}
}

// fail maps service errors onto the response envelope. Unexpected errors are
// logged and reported with the generic message only.
func (p *PostController) fail(ctx *gin.Context, err error, code int, op string) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		utils.Error(ctx, http.StatusBadRequest, 40020, verr.Message)
	case errors.Is(err, repository.ErrPostNotFound):
		utils.Error(ctx, http.StatusNotFound, 40420, "Post not found")
	case isBodyTooLarge(err):
		utils.Error(ctx, http.StatusRequestEntityTooLarge, 41301, "Request body too large")
	default:
		utils.Logger.Error(op+" failed",
			zap.Error(err),
			zap.String("path", ctx.FullPath()),
			zap.String("id", ctx.Param("id")))
		utils.Error(ctx, http.StatusInternalServerError, code, utils.GenericErrorMessage)
	}
}

func isBodyTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "request body too large")
}

func parsePagination(pageStr, limitStr string) (int, int) {
	page, limit := 1, services.DefaultPageLimit
	if n, err := strconv.Atoi(strings.TrimSpace(pageStr)); err == nil && n > 0 {
		page = n
	}
	if n, err := strconv.Atoi(strings.TrimSpace(limitStr)); err == nil && n > 0 {
		limit = n
	}
	return page, limit
}

func parseID(raw string) (uint, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
