package main

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"quill/internal/domain/tags"
)

// listTagsHandler godoc
//
//	@Summary	List tags
//	@Tags		tags
//	@Produce	json
//	@Success	200	{array}	tags.Tag
//	@Router		/tags [get]
func (app *application) listTagsHandler(w http.ResponseWriter, r *http.Request) {
	list, err := app.store.Tags.GetAll(r.Context())
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, list); err != nil {
		app.internalServerError(w, r, err)
	}
}

// getTagHandler godoc
//
//	@Summary	Get a tag
//	@Tags		tags
//	@Produce	json
//	@Param		tagID	path		int	true	"Tag ID"
//	@Success	200		{object}	tags.Tag
//	@Failure	404		{object}	error
//	@Router		/tags/{tagID} [get]
func (app *application) getTagHandler(w http.ResponseWriter, r *http.Request) {
	tagID, err := strconv.ParseInt(chi.URLParam(r, "tagID"), 10, 64)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	tag, err := app.store.Tags.GetByID(r.Context(), tagID)
	if err != nil {
		switch {
		case errors.Is(err, tags.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, tag); err != nil {
		app.internalServerError(w, r, err)
	}
}

// getTagBySlugHandler godoc
//
//	@Summary	Get a tag by slug
//	@Tags		tags
//	@Produce	json
//	@Param		slug	path		string	true	"Tag slug"
//	@Success	200		{object}	tags.Tag
//	@Failure	404		{object}	error
//	@Router		/tags/slug/{slug} [get]
func (app *application) getTagBySlugHandler(w http.ResponseWriter, r *http.Request) {
	tag, err := app.store.Tags.GetBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		switch {
		case errors.Is(err, tags.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, tag); err != nil {
		app.internalServerError(w, r, err)
	}
}

type TagPayload struct {
	Name string `json:"name" validate:"required,min=2,max=50"`
}

// createTagHandler godoc
//
//	@Summary		Create a tag
//	@Description	Authors and admins only. The slug is derived from the name.
//	@Tags			tags
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		TagPayload	true	"Tag name"
//	@Success		201		{object}	tags.Tag
//	@Failure		400		{object}	error
//	@Failure		409		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/tags [post]
func (app *application) createTagHandler(w http.ResponseWriter, r *http.Request) {
	var payload TagPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	tag := &tags.Tag{Name: payload.Name}

	if err := app.store.Tags.Create(r.Context(), tag); err != nil {
		switch {
		case errors.Is(err, tags.ErrDuplicateName):
			app.conflictResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if err := app.jsonResponse(w, http.StatusCreated, tag); err != nil {
		app.internalServerError(w, r, err)
	}
}

// updateTagHandler godoc
//
//	@Summary		Rename a tag
//	@Description	Admin only. A renamed tag gets a freshly derived slug.
//	@Tags			tags
//	@Accept			json
//	@Produce		json
//	@Param			tagID	path		int			true	"Tag ID"
//	@Param			payload	body		TagPayload	true	"New name"
//	@Success		200		{object}	tags.Tag
//	@Failure		400		{object}	error
//	@Failure		404		{object}	error
//	@Failure		409		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/tags/{tagID} [put]
func (app *application) updateTagHandler(w http.ResponseWriter, r *http.Request) {
	tagID, err := strconv.ParseInt(chi.URLParam(r, "tagID"), 10, 64)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var payload TagPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	ctx := r.Context()

	tag, err := app.store.Tags.GetByID(ctx, tagID)
	if err != nil {
		switch {
		case errors.Is(err, tags.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	tag.Name = payload.Name

	if err := app.store.Tags.Update(ctx, tag); err != nil {
		switch {
		case errors.Is(err, tags.ErrNotFound):
			app.notFoundResponse(w, r, err)
		case errors.Is(err, tags.ErrDuplicateName):
			app.conflictResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, tag); err != nil {
		app.internalServerError(w, r, err)
	}
}

// deleteTagHandler godoc
//
//	@Summary		Delete a tag
//	@Description	Admin only. The tag is detached from any posts first.
//	@Tags			tags
//	@Produce		json
//	@Param			tagID	path		int	true	"Tag ID"
//	@Success		200		{object}	string
//	@Failure		404		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/tags/{tagID} [delete]
func (app *application) deleteTagHandler(w http.ResponseWriter, r *http.Request) {
	tagID, err := strconv.ParseInt(chi.URLParam(r, "tagID"), 10, 64)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := app.store.Tags.Delete(r.Context(), tagID); err != nil {
		switch {
		case errors.Is(err, tags.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, "tag deleted"); err != nil {
		app.internalServerError(w, r, err)
	}
}
