package http

import (
	"errors"
	"io"
	nethttp "net/http"
	"path"

	"github.com/gin-gonic/gin"
	"github.com/marmos91/svnconnector/internal/logger"
	"github.com/marmos91/svnconnector/pkg/backend"
	"github.com/marmos91/svnconnector/pkg/connector"
)

// registerRoutes mounts the connector API onto r.
//
// Node identifiers are slash-separated paths, so they travel as the
// catch-all tail of the URL: GET /api/v1/nodes/procs/order.bpmn addresses
// "/procs/order.bpmn".
func (a *HTTPAdapter) registerRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")

	api.POST("/login", a.route(connector.OpLogin, a.login)...)
	api.GET("/root", a.route(connector.OpGetRoot, a.getRoot)...)

	// Nodes
	api.GET("/nodes/*id", a.route(connector.OpGetNode, a.getNode)...)
	api.POST("/nodes", a.route(connector.OpCreateNode, a.createNode)...)
	api.DELETE("/nodes/*id", a.route(connector.OpDeleteNode, a.deleteNode)...)
	api.GET("/children/*id", a.route(connector.OpGetChildren, a.getChildren)...)

	// Content
	api.GET("/content/*id", a.route(connector.OpGetContent, a.getContent)...)
	api.PUT("/content/*id", a.route(connector.OpUpdateContent, a.updateContent)...)
	api.GET("/info/*id", a.route(connector.OpGetContentInformation, a.getContentInformation)...)
}

func (a *HTTPAdapter) route(op string, h gin.HandlerFunc) []gin.HandlerFunc {
	return []gin.HandlerFunc{a.observe(op), a.throttle(), a.guard(op), h}
}

// createRequest is the body of POST /nodes.
type createRequest struct {
	ParentID string             `json:"parentId"`
	ID       string             `json:"id" binding:"required"`
	Label    string             `json:"label" binding:"required"`
	Type     connector.NodeType `json:"type"`
}

func nodeID(c *gin.Context) string {
	id := c.Param("id")
	if id == "" {
		return connector.RootID
	}
	return id
}

func (a *HTTPAdapter) login(c *gin.Context) {
	username, password, ok := c.Request.BasicAuth()
	if !ok {
		c.JSON(nethttp.StatusBadRequest, gin.H{"error": "basic credentials required"})
		return
	}
	a.gate.acquire(credentials{username: username, password: password}, a.connector.Login)
	a.gate.release()
	c.Status(nethttp.StatusNoContent)
}

func (a *HTTPAdapter) getRoot(c *gin.Context) {
	c.JSON(nethttp.StatusOK, a.connector.GetRoot())
}

func (a *HTTPAdapter) getNode(c *gin.Context) {
	id := nodeID(c)
	node, err := a.connector.GetNode(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	if node == nil {
		c.JSON(nethttp.StatusNotFound, gin.H{"error": "node not found", "id": id})
		return
	}
	c.JSON(nethttp.StatusOK, node)
}

func (a *HTTPAdapter) getChildren(c *gin.Context) {
	parent := &connector.Node{ID: nodeID(c), Type: connector.NodeTypeFolder}
	nodes, err := a.connector.GetChildren(c.Request.Context(), parent)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, nodes)
}

func (a *HTTPAdapter) createNode(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(nethttp.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	node, err := a.connector.CreateNode(c.Request.Context(), req.ParentID, req.ID, req.Label, req.Type)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(nethttp.StatusCreated, node)
}

func (a *HTTPAdapter) deleteNode(c *gin.Context) {
	node := &connector.Node{ID: nodeID(c)}
	if err := a.connector.DeleteNode(c.Request.Context(), node); err != nil {
		writeError(c, err)
		return
	}
	c.Status(nethttp.StatusNoContent)
}

// getContent streams the node's bytes. A "type" query parameter overrides
// the type derived from the repository, e.g. ?type=PNG_FILE fetches the
// rendering stored next to a BPMN file.
func (a *HTTPAdapter) getContent(c *gin.Context) {
	ctx := c.Request.Context()
	id := nodeID(c)

	node := &connector.Node{ID: id, Label: path.Base(id)}
	if name := c.Query("type"); name != "" {
		t, err := connector.ParseNodeType(name)
		if err != nil {
			c.JSON(nethttp.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		node.Type = t
	} else {
		resolved, err := a.connector.GetNode(ctx, id)
		if err != nil {
			writeError(c, err)
			return
		}
		if resolved == nil {
			c.JSON(nethttp.StatusNotFound, gin.H{"error": "node not found", "id": id})
			return
		}
		node = resolved
	}

	rc, err := a.connector.GetContent(ctx, node)
	if err != nil {
		writeError(c, err)
		return
	}
	if rc == nil {
		c.JSON(nethttp.StatusNotFound, gin.H{"error": "content not found", "id": id})
		return
	}
	defer func() { _ = rc.Close() }()

	contentType := "application/octet-stream"
	if node.Type == connector.NodeTypePNGFile {
		contentType = "image/png"
	}
	c.Header("Content-Type", contentType)
	c.Status(nethttp.StatusOK)

	n, err := io.Copy(c.Writer, rc)
	a.metrics.RecordBytesTransferred("read", n)
	if err != nil {
		logger.Warn("Streaming content of %q aborted after %d bytes: %v", id, n, err)
	}
}

func (a *HTTPAdapter) updateContent(c *gin.Context) {
	ctx := c.Request.Context()
	id := nodeID(c)

	node, err := a.connector.GetNode(ctx, id)
	if err != nil {
		writeError(c, err)
		return
	}
	if node == nil {
		c.JSON(nethttp.StatusNotFound, gin.H{"error": "node not found", "id": id})
		return
	}
	if node.Type == connector.NodeTypeFolder {
		writeError(c, connector.ErrNotAFile)
		return
	}

	body := &countingReader{r: c.Request.Body}
	info, err := a.connector.UpdateContent(ctx, node, body)
	a.metrics.RecordBytesTransferred("write", body.n)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, info)
}

func (a *HTTPAdapter) getContentInformation(c *gin.Context) {
	node := &connector.Node{ID: nodeID(c)}
	info, err := a.connector.GetContentInformation(c.Request.Context(), node)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, info)
}

// writeError maps connector errors onto HTTP status codes.
func writeError(c *gin.Context, err error) {
	status := nethttp.StatusInternalServerError

	var opErr *connector.OperationError
	switch {
	case errors.Is(err, backend.ErrNotFound):
		status = nethttp.StatusNotFound
	case errors.Is(err, connector.ErrUnspecifiedNodeType), errors.Is(err, connector.ErrNotAFile),
		errors.Is(err, connector.ErrInvalidLabel):
		status = nethttp.StatusBadRequest
	case errors.Is(err, connector.ErrInvalidConfiguration):
		status = nethttp.StatusInternalServerError
	case errors.As(err, &opErr):
		status = nethttp.StatusBadGateway
	}

	c.JSON(status, gin.H{"error": err.Error()})
}

type countingReader struct {
	r io.Reader
	n int64
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	cr.n += int64(n)
	return n, err
}
