// Package server exposes a genomic array over HTTP for read-only queries.
package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/scttfrdmn/genomicarray-go/pkg/genomicarray"
	"github.com/scttfrdmn/genomicarray-go/pkg/genomics"
	"github.com/sirupsen/logrus"
)

// ChromosomeInfo describes one chromosome array.
type ChromosomeInfo struct {
	Name  string             `json:"name"`
	Shape genomicarray.Shape `json:"shape"`
}

// InfoResponse is the body of GET /info.
type InfoResponse struct {
	Kind        string           `json:"kind"`
	Stranded    bool             `json:"stranded"`
	Conditions  []string         `json:"conditions"`
	Resolution  int              `json:"resolution"`
	Order       int              `json:"order"`
	Chromosomes []ChromosomeInfo `json:"chromosomes"`
}

// ValuesResponse is the body of GET /values.
type ValuesResponse[T genomicarray.Number] struct {
	Region    string `json:"region"`
	Condition string `json:"condition"`
	Values    []T    `json:"values"`
}

// BlockResponse is the body of GET /block.
type BlockResponse[T genomicarray.Number] struct {
	Region string             `json:"region"`
	Shape  genomicarray.Shape `json:"shape"`
	Data   []T                `json:"data"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewRouter builds a gin engine serving store.
func NewRouter[T genomicarray.Number](store genomicarray.Store[T], log logrus.FieldLogger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))
	router.GET("/info", NewInfoHandler(store))
	router.GET("/values", NewValuesHandler(store))
	router.GET("/block", NewBlockHandler(store))
	return router
}

func requestLogger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
		}).Debug("request")
	}
}

// NewInfoHandler builds a gin handler describing the store layout.
func NewInfoHandler[T genomicarray.Number](store genomicarray.Store[T]) func(c *gin.Context) {
	return func(c *gin.Context) {
		resp := InfoResponse{
			Kind:       store.Kind().String(),
			Stranded:   store.Stranded(),
			Conditions: store.Conditions(),
			Resolution: store.Resolution(),
			Order:      store.Order(),
		}
		for _, name := range store.Chromosomes() {
			shape, err := store.Shape(name)
			if err != nil {
				abort(c, err)
				return
			}
			resp.Chromosomes = append(resp.Chromosomes, ChromosomeInfo{Name: name, Shape: shape})
		}
		c.JSON(http.StatusOK, resp)
	}
}

// NewValuesHandler builds a gin handler returning one condition over a
// region: /values?region=chr1:100-200:-&condition=treated
func NewValuesHandler[T genomicarray.Number](store genomicarray.Store[T]) func(c *gin.Context) {
	return func(c *gin.Context) {
		iv, err := genomics.ParseInterval(c.Query("region"))
		if err != nil {
			abort(c, err)
			return
		}
		condition, err := conditionIndex(store.Conditions(), c.DefaultQuery("condition", "0"))
		if err != nil {
			abort(c, err)
			return
		}

		values, err := store.Read(iv, condition)
		if err != nil {
			abort(c, err)
			return
		}
		c.JSON(http.StatusOK, ValuesResponse[T]{
			Region:    iv.String(),
			Condition: store.Conditions()[condition],
			Values:    values,
		})
	}
}

// NewBlockHandler builds a gin handler returning every strand and
// condition over a region.
func NewBlockHandler[T genomicarray.Number](store genomicarray.Store[T]) func(c *gin.Context) {
	return func(c *gin.Context) {
		iv, err := genomics.ParseInterval(c.Query("region"))
		if err != nil {
			abort(c, err)
			return
		}
		block, err := store.Block(iv)
		if err != nil {
			abort(c, err)
			return
		}
		c.JSON(http.StatusOK, BlockResponse[T]{Region: iv.String(), Shape: block.Shape, Data: block.Data})
	}
}

// conditionIndex accepts a condition name or a zero-based index.
func conditionIndex(conditions []string, value string) (int, error) {
	for i, name := range conditions {
		if name == value {
			return i, nil
		}
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return 0, genomicarray.ErrInvalidCondition
	}
	return i, nil
}

func abort(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, genomicarray.ErrUnknownChromosome):
		status = http.StatusNotFound
	case errors.Is(err, genomicarray.ErrInvalidCondition),
		errors.Is(err, genomicarray.ErrInvalidInterval):
		status = http.StatusBadRequest
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: err.Error()})
}
