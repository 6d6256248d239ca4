package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/go-chi/chi/v5"

	"quill/internal/authz"
	"quill/internal/domain/posts"
	"quill/internal/domain/users"
	"quill/internal/params"
)

const maxFeaturedImageSize = 5 << 20 // 5 MB

type PostListResponse struct {
	Posts      []posts.Post      `json:"posts"`
	Pagination params.Pagination `json:"pagination"`
}

// listFilter builds the List filter the caller is entitled to. Anonymous
// readers see published public posts; authenticated readers additionally see
// members-only posts; admins see everything and may filter by status,
// including ?status=all to disable the status filter.
func listFilter(caller *users.User, r *http.Request, p params.Pagination) posts.Filter {
	q := r.URL.Query()

	f := posts.Filter{
		Search: q.Get("search"),
		Tag:    q.Get("tag"),
		Limit:  p.Limit,
		Offset: p.Offset,
	}
	if id, err := strconv.ParseInt(q.Get("category_id"), 10, 64); err == nil {
		f.CategoryID = id
	}

	if caller != nil && caller.IsAdmin() {
		switch status := posts.Status(q.Get("status")); {
		case status == "all":
			// no status filter
		case status.Valid():
			f.Status = status
		default:
			f.Status = posts.StatusPublished
		}
		return f
	}

	f.Status = posts.StatusPublished
	if caller == nil {
		f.Visibilities = []posts.Visibility{posts.VisibilityPublic}
	} else {
		f.Visibilities = []posts.Visibility{posts.VisibilityPublic, posts.VisibilityMembers}
	}
	return f
}

// listPostsHandler godoc
//
//	@Summary		List posts
//	@Description	Paginated listing scoped to what the caller may see. Supports search, tag, category and (admin) status filters.
//	@Tags			posts
//	@Produce		json
//	@Param			page		query		int		false	"Page number"
//	@Param			limit		query		int		false	"Page size (max 50)"
//	@Param			search		query		string	false	"Search in title and content"
//	@Param			tag			query		string	false	"Filter by tag name"
//	@Param			category_id	query		int		false	"Filter by category"
//	@Param			status		query		string	false	"Admin only: draft, published, archived or all"
//	@Success		200			{object}	PostListResponse
//	@Router			/posts [get]
func (app *application) listPostsHandler(w http.ResponseWriter, r *http.Request) {
	caller := getUserFromContext(r)
	p := params.ParsePagination(r.URL.Query())

	list, total, err := app.store.Posts.List(r.Context(), listFilter(caller, r, p))
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	p.ComputeMeta(total)

	resp := PostListResponse{Posts: list, Pagination: p}
	if err := app.jsonResponse(w, http.StatusOK, resp); err != nil {
		app.internalServerError(w, r, err)
	}
}

// respondWithPost applies the view policy and, on an allowed read, bumps the
// view counter. Hidden posts answer 404 so their existence never leaks; the
// one exception is members-only content for anonymous callers, which gets a
// 401 inviting a login.
func (app *application) respondWithPost(w http.ResponseWriter, r *http.Request, post *posts.Post) {
	caller := getUserFromContext(r)

	if !authz.CanView(caller, post) {
		if caller == nil && post.Visibility == posts.VisibilityMembers && post.Status == posts.StatusPublished {
			app.unauthorizedErrorResponse(w, r, errors.New("authentication required"))
			return
		}
		app.notFoundResponse(w, r, posts.ErrNotFound)
		return
	}

	if err := app.store.Posts.IncrementViewCount(r.Context(), post.ID); err != nil {
		app.logger.Errorw("error incrementing view count", "post_id", post.ID, "error", err)
	} else {
		post.ViewCount++
	}

	if err := app.jsonResponse(w, http.StatusOK, post); err != nil {
		app.internalServerError(w, r, err)
	}
}

// getPostHandler godoc
//
//	@Summary		Get a post by ID
//	@Tags			posts
//	@Produce		json
//	@Param			postID	path		int	true	"Post ID"
//	@Success		200		{object}	posts.Post
//	@Failure		404		{object}	error
//	@Router			/posts/{postID} [get]
func (app *application) getPostHandler(w http.ResponseWriter, r *http.Request) {
	postID, err := strconv.ParseInt(chi.URLParam(r, "postID"), 10, 64)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	post, err := app.store.Posts.GetByID(r.Context(), postID)
	if err != nil {
		switch {
		case errors.Is(err, posts.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	app.respondWithPost(w, r, post)
}

// getPostBySlugHandler godoc
//
//	@Summary		Get a post by slug
//	@Tags			posts
//	@Produce		json
//	@Param			slug	path		string	true	"Post slug"
//	@Success		200		{object}	posts.Post
//	@Failure		404		{object}	error
//	@Router			/posts/slug/{slug} [get]
func (app *application) getPostBySlugHandler(w http.ResponseWriter, r *http.Request) {
	post, err := app.store.Posts.GetBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		switch {
		case errors.Is(err, posts.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	app.respondWithPost(w, r, post)
}

// listPostsByAuthorHandler godoc
//
//	@Summary		List posts by author
//	@Description	The author themselves (and admins) see drafts and private posts; everyone else sees only what they could read directly.
//	@Tags			posts
//	@Produce		json
//	@Param			authorID	path		int	true	"Author's user ID"
//	@Param			page		query		int	false	"Page number"
//	@Param			limit		query		int	false	"Page size (max 50)"
//	@Success		200			{object}	PostListResponse
//	@Router			/posts/author/{authorID} [get]
func (app *application) listPostsByAuthorHandler(w http.ResponseWriter, r *http.Request) {
	authorID, err := strconv.ParseInt(chi.URLParam(r, "authorID"), 10, 64)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	caller := getUserFromContext(r)
	p := params.ParsePagination(r.URL.Query())

	f := posts.Filter{
		AuthorID: authorID,
		Limit:    p.Limit,
		Offset:   p.Offset,
	}
	owner := caller != nil && (caller.IsAdmin() || caller.ID == authorID)
	if !owner {
		f.Status = posts.StatusPublished
		if caller == nil {
			f.Visibilities = []posts.Visibility{posts.VisibilityPublic}
		} else {
			f.Visibilities = []posts.Visibility{posts.VisibilityPublic, posts.VisibilityMembers}
		}
	}

	list, total, err := app.store.Posts.List(r.Context(), f)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	p.ComputeMeta(total)

	resp := PostListResponse{Posts: list, Pagination: p}
	if err := app.jsonResponse(w, http.StatusOK, resp); err != nil {
		app.internalServerError(w, r, err)
	}
}

type CreatePostPayload struct {
	Title      string  `json:"title" validate:"required,min=3,max=255"`
	Content    string  `json:"content" validate:"required"`
	Excerpt    string  `json:"excerpt" validate:"omitempty,max=500"`
	CategoryID int64   `json:"category_id" validate:"required,gt=0"`
	TagIDs     []int64 `json:"tag_ids" validate:"omitempty,dive,gt=0"`
	Status     string  `json:"status" validate:"omitempty,oneof=draft published archived"`
	Visibility string  `json:"visibility" validate:"omitempty,oneof=public private members"`
}

// createPostHandler godoc
//
//	@Summary		Create a post
//	@Description	Authors and admins only. The slug is derived from the title; a colliding title gets a unique suffix.
//	@Tags			posts
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		CreatePostPayload	true	"Post fields"
//	@Success		201		{object}	posts.Post
//	@Failure		400		{object}	error
//	@Failure		403		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/posts [post]
func (app *application) createPostHandler(w http.ResponseWriter, r *http.Request) {
	var payload CreatePostPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	caller := getUserFromContext(r)

	post := &posts.Post{
		Title:      payload.Title,
		Content:    payload.Content,
		Excerpt:    payload.Excerpt,
		AuthorID:   caller.ID,
		CategoryID: payload.CategoryID,
		Status:     posts.StatusDraft,
		Visibility: posts.VisibilityPublic,
	}
	if payload.Status != "" {
		post.Status = posts.Status(payload.Status)
	}
	if payload.Visibility != "" {
		post.Visibility = posts.Visibility(payload.Visibility)
	}
	if post.Status == posts.StatusPublished {
		post.PublishedAt = sql.NullTime{Time: time.Now(), Valid: true}
	}

	if err := app.store.Posts.Create(r.Context(), post, payload.TagIDs); err != nil {
		switch {
		case errors.Is(err, posts.ErrDuplicateSlug):
			app.conflictResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if err := app.jsonResponse(w, http.StatusCreated, post); err != nil {
		app.internalServerError(w, r, err)
	}
}

type UpdatePostPayload struct {
	Title      *string `json:"title" validate:"omitempty,min=3,max=255"`
	Content    *string `json:"content" validate:"omitempty"`
	Excerpt    *string `json:"excerpt" validate:"omitempty,max=500"`
	CategoryID *int64  `json:"category_id" validate:"omitempty,gt=0"`
	TagIDs     []int64 `json:"tag_ids" validate:"omitempty,dive,gt=0"`
	Status     *string `json:"status" validate:"omitempty,oneof=draft published archived"`
	Visibility *string `json:"visibility" validate:"omitempty,oneof=public private members"`
}

// updatePostHandler godoc
//
//	@Summary		Update a post
//	@Description	Owner or admin only. Omitted fields keep their value; a nil tag_ids leaves tags untouched, an empty array clears them. A new title re-derives the slug.
//	@Tags			posts
//	@Accept			json
//	@Produce		json
//	@Param			postID	path		int					true	"Post ID"
//	@Param			payload	body		UpdatePostPayload	true	"Changed fields"
//	@Success		200		{object}	posts.Post
//	@Failure		400		{object}	error
//	@Failure		403		{object}	error
//	@Failure		404		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/posts/{postID} [patch]
func (app *application) updatePostHandler(w http.ResponseWriter, r *http.Request) {
	postID, err := strconv.ParseInt(chi.URLParam(r, "postID"), 10, 64)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var payload UpdatePostPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	ctx := r.Context()

	post, err := app.store.Posts.GetByID(ctx, postID)
	if err != nil {
		switch {
		case errors.Is(err, posts.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	caller := getUserFromContext(r)
	if !authz.CanMutate(caller, post.AuthorID) {
		app.forbiddenResponse(w, r)
		return
	}

	retitled := false
	if payload.Title != nil && *payload.Title != post.Title {
		post.Title = *payload.Title
		retitled = true
	}
	if payload.Content != nil {
		post.Content = *payload.Content
	}
	if payload.Excerpt != nil {
		post.Excerpt = *payload.Excerpt
	}
	if payload.CategoryID != nil {
		post.CategoryID = *payload.CategoryID
	}
	if payload.Status != nil {
		status := posts.Status(*payload.Status)
		if status == posts.StatusPublished && post.Status != posts.StatusPublished {
			post.PublishedAt = sql.NullTime{Time: time.Now(), Valid: true}
		}
		post.Status = status
	}
	if payload.Visibility != nil {
		post.Visibility = posts.Visibility(*payload.Visibility)
	}

	if err := app.store.Posts.Update(ctx, post, payload.TagIDs, retitled); err != nil {
		switch {
		case errors.Is(err, posts.ErrNotFound):
			app.notFoundResponse(w, r, err)
		case errors.Is(err, posts.ErrDuplicateSlug):
			app.conflictResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	updated, err := app.store.Posts.GetByID(ctx, post.ID)
	if err == nil {
		post = updated
	}

	if err := app.jsonResponse(w, http.StatusOK, post); err != nil {
		app.internalServerError(w, r, err)
	}
}

// deletePostHandler godoc
//
//	@Summary		Delete a post
//	@Description	Owner or admin only
//	@Tags			posts
//	@Produce		json
//	@Param			postID	path		int	true	"Post ID"
//	@Success		200		{object}	string
//	@Failure		403		{object}	error
//	@Failure		404		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/posts/{postID} [delete]
func (app *application) deletePostHandler(w http.ResponseWriter, r *http.Request) {
	postID, err := strconv.ParseInt(chi.URLParam(r, "postID"), 10, 64)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	ctx := r.Context()

	post, err := app.store.Posts.GetByID(ctx, postID)
	if err != nil {
		switch {
		case errors.Is(err, posts.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	caller := getUserFromContext(r)
	if !authz.CanMutate(caller, post.AuthorID) {
		app.forbiddenResponse(w, r)
		return
	}

	if err := app.store.Posts.Delete(ctx, postID); err != nil {
		switch {
		case errors.Is(err, posts.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, "post deleted"); err != nil {
		app.internalServerError(w, r, err)
	}
}

// uploadFeaturedImageHandler godoc
//
//	@Summary		Upload a featured image
//	@Description	Owner or admin only. Accepts a multipart form with an "image" file, stores it in Cloudinary and saves the URL on the post.
//	@Tags			posts
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			postID	path		int		true	"Post ID"
//	@Param			image	formData	file	true	"Image file (max 5 MB)"
//	@Success		200		{object}	posts.Post
//	@Failure		400		{object}	error
//	@Failure		403		{object}	error
//	@Failure		404		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/posts/{postID}/featured-image [post]
func (app *application) uploadFeaturedImageHandler(w http.ResponseWriter, r *http.Request) {
	postID, err := strconv.ParseInt(chi.URLParam(r, "postID"), 10, 64)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	ctx := r.Context()

	post, err := app.store.Posts.GetByID(ctx, postID)
	if err != nil {
		switch {
		case errors.Is(err, posts.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	caller := getUserFromContext(r)
	if !authz.CanMutate(caller, post.AuthorID) {
		app.forbiddenResponse(w, r)
		return
	}

	if err := r.ParseMultipartForm(maxFeaturedImageSize); err != nil {
		app.badRequestResponse(w, r, fmt.Errorf("image too large or malformed form: %w", err))
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		app.badRequestResponse(w, r, errors.New("missing image file"))
		return
	}
	defer file.Close()

	uploadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	result, err := app.cld.Upload.Upload(uploadCtx, file, uploader.UploadParams{
		Folder:   "quill/posts",
		PublicID: fmt.Sprintf("post_%d", post.ID),
	})
	if err != nil {
		app.logger.Errorw("cloudinary upload failed", "post_id", post.ID, "filename", header.Filename, "error", err)
		app.internalServerError(w, r, err)
		return
	}

	if err := app.store.Posts.SetFeaturedImage(ctx, post.ID, result.SecureURL); err != nil {
		app.internalServerError(w, r, err)
		return
	}
	post.FeaturedImage = sql.NullString{String: result.SecureURL, Valid: true}

	if err := app.jsonResponse(w, http.StatusOK, post); err != nil {
		app.internalServerError(w, r, err)
	}
}
