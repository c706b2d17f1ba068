package server

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gopkg.in/tylerb/graceful.v1"

	"cpl/internal/config"
	"cpl/internal/driver"
	"cpl/internal/output"
)

var (
	// logger instance
	log = logrus.New()
)

// SetLogLevelString changes global module log level.
func SetLogLevelString(level string) error {
	ll, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}

	SetLogLevel(ll)
	return nil // OK
}

// SetLogLevel changes global module log level.
func SetLogLevel(level logrus.Level) {
	log.Level = level
}

// SetLogOutput changes the destination of the module log.
func SetLogOutput(w io.Writer) {
	log.Out = w
}

// GetLogLevel gets global module log level.
func GetLogLevel() logrus.Level {
	return log.Level
}

// MaxSourceSize limits the request body of /parse and /tokens.
const MaxSourceSize = 4 << 20

// Error contains HTTP status and error message.
type Error struct {
	Status  int    `codec:"status" json:"status"`
	Message string `codec:"message,omitempty" json:"message,omitempty"`
	Details string `codec:"details,omitempty" json:"details,omitempty"`
}

// NewError creates new server error using status and message.
func NewError(status int, message string) *Error {
	return &Error{Status: status, Message: message}
}

func (err *Error) Error() string {
	if len(err.Details) != 0 {
		return fmt.Sprintf("%d %s (%s)", err.Status, err.Message, err.Details)
	}
	return fmt.Sprintf("%d %s", err.Status, err.Message)
}

// WithDetails adds additional details to the error.
func (err *Error) WithDetails(details string) *Error {
	err.Details = details
	return err
}

// Server is the HTTP front end used by editor tooling.
type Server struct {
	Config  *config.Config
	Version string

	router *gin.Engine
}

// New creates a server and registers its routes.
func New(cfg *config.Config, version string) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	s := &Server{Config: cfg, Version: version}

	router := gin.New()

	// registered ahead of the request logger so health probes stay quiet
	router.GET("/version", s.DoVersion)

	router.Use(func(ctx *gin.Context) {
		beg := time.Now()
		path := ctx.Request.URL.Path
		method := ctx.Request.Method

		ctx.Next() // do actual processing

		log.WithFields(map[string]interface{}{
			"status":  ctx.Writer.Status(),
			"client":  ctx.ClientIP(),
			"request": ctx.Request.URL,
			"latency": time.Since(beg),
		}).Infof("[%s]: %s %s", "REST", method, path)
	})
	router.Use(gin.Recovery())

	router.POST("/parse", s.DoParse)
	router.POST("/tokens", s.DoTokens)
	router.GET("/logging/level", s.DoLoggingLevel)
	router.POST("/logging/level", s.DoLoggingLevel)

	s.router = router
	return s
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe listens on the configured address until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	l, err := net.Listen("tcp", s.Config.Server.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %q: %s", s.Config.Server.Address, err)
	}
	return s.Serve(ctx, l)
}

// Serve accepts connections on l until ctx is done, then waits for
// in-flight requests up to the configured shutdown timeout.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	timeout, err := s.Config.ShutdownTimeout()
	if err != nil {
		return err
	}

	worker := &graceful.Server{
		Timeout:          timeout,
		NoSignalHandling: true,
		Server: &http.Server{
			Addr:    l.Addr().String(),
			Handler: s.router,
		},
	}

	go func() {
		select {
		case <-ctx.Done():
			log.WithField("timeout", timeout).Debug("stopping server")
			worker.Stop(timeout)
		case <-worker.StopChan():
		}
	}()

	log.WithFields(map[string]interface{}{
		"address": l.Addr().String(),
		"version": s.Version,
	}).Info("starting server...")
	return worker.Serve(l)
}

// DoVersion handles GET /version.
func (s *Server) DoVersion(ctx *gin.Context) {
	info := map[string]interface{}{
		"version": s.Version,
	}
	ctx.JSON(http.StatusOK, info)
}

// DoParse handles POST /parse: the body is the source of one unit.
// Query parameters: name (unit name), recover (collect every diagnostic),
// format (json or msgpack).
func (s *Server) DoParse(ctx *gin.Context) {
	defer recoverFromPanic(ctx)

	unit := s.readUnit(ctx)
	opts := driver.Options{Recover: s.Config.Recover}
	if v, ok := ctx.GetQuery("recover"); ok {
		opts.Recover = parseBool(v)
	}

	res, _ := driver.Compile(unit, opts)
	resp := output.NewParseResponse(res, opts.Recover, s.Config.Timing)

	status := http.StatusOK
	if !resp.OK {
		status = http.StatusUnprocessableEntity
	}
	s.encode(ctx, status, resp)
}

// DoTokens handles POST /tokens: the token stream up to EOF or the
// first lexical error.
func (s *Server) DoTokens(ctx *gin.Context) {
	defer recoverFromPanic(ctx)

	unit := s.readUnit(ctx)
	resp, err := output.NewTokensResponse(unit)
	if err != nil {
		panic(NewError(http.StatusInternalServerError, err.Error()))
	}

	status := http.StatusOK
	if !resp.OK {
		status = http.StatusUnprocessableEntity
	}
	s.encode(ctx, status, resp)
}

// DoLoggingLevel handles /logging/level: ?core=debug&driver=info
func (s *Server) DoLoggingLevel(ctx *gin.Context) {
	defer recoverFromPanic(ctx)

	for key, vals := range ctx.Request.URL.Query() {
		for _, level := range vals {
			if err := setLoggingLevel(key, level); err != nil {
				panic(NewError(http.StatusBadRequest, err.Error()).
					WithDetails("failed to change logging level"))
			}
		}
	}

	ctx.JSON(http.StatusOK, map[string]string{
		"core":   GetLogLevel().String(),
		"driver": driver.GetLogLevel().String(),
	})
}

func setLoggingLevel(logger string, level string) error {
	switch strings.ToLower(logger) {
	case "core":
		return SetLogLevelString(level)
	case "driver":
		return driver.SetLogLevelString(level)
	}
	return fmt.Errorf("%q is unknown logger name", logger)
}

// readUnit reads the request body as one compilation unit.
func (s *Server) readUnit(ctx *gin.Context) *driver.Unit {
	body := http.MaxBytesReader(ctx.Writer, ctx.Request.Body, MaxSourceSize)
	buf, err := io.ReadAll(body)
	if err != nil {
		if _, ok := err.(*http.MaxBytesError); ok {
			panic(NewError(http.StatusRequestEntityTooLarge, err.Error()).
				WithDetails("source is too large"))
		}
		panic(NewError(http.StatusBadRequest, err.Error()).
			WithDetails("failed to read source"))
	}

	name := ctx.DefaultQuery("name", "input"+s.Config.Extension)
	return &driver.Unit{Name: name, Source: string(buf)}
}

// encode writes v in the requested format: ?format= first, then Accept.
func (s *Server) encode(ctx *gin.Context, status int, v interface{}) {
	format := strings.ToLower(ctx.Query("format"))
	if format == "" && strings.Contains(ctx.GetHeader("Accept"), "msgpack") {
		format = config.FormatMsgpack
	}

	var buf bytes.Buffer
	if err := output.Encode(&buf, format, v); err != nil {
		if _, ok := err.(*output.FormatError); ok {
			panic(NewError(http.StatusBadRequest, err.Error()).
				WithDetails("format must be json or msgpack"))
		}
		panic(NewError(http.StatusInternalServerError, err.Error()).
			WithDetails("failed to encode response"))
	}
	ctx.Data(status, output.ContentType(format), buf.Bytes())
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "", "1", "t", "true", "yes", "on":
		return true
	}
	return false
}

// recoverFromPanic checks panics and reports them via HTTP response.
func recoverFromPanic(ctx *gin.Context) {
	if r := recover(); r != nil {
		var err *Error

		switch v := r.(type) {
		case *Error:
			log.WithError(v).Warnf("Panic recover: server error")
			err = v // report "as is"

		case error:
			log.WithError(v).Warnf("Panic recover: error")
			log.Debugf("stack trace:\n%s", debug.Stack())
			err = NewError(http.StatusInternalServerError, v.Error())

		default:
			log.WithField("error", r).Warnf("Panic recover: object")
			log.Debugf("stack trace:\n%s", debug.Stack())
			err = NewError(http.StatusInternalServerError, fmt.Sprintf("%+v", r))
		}

		ctx.IndentedJSON(err.Status, err)
	}
}
