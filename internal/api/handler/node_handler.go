package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	apimiddleware "github.com/opendatanode/manager/internal/api/middleware"
	"github.com/opendatanode/manager/internal/downstream"
)

// NodeHandler exposes the resolved downstream URLs and relays console
// requests to the catalog and storage services.
type NodeHandler struct {
	connector *downstream.Connector
	catalog   *downstream.Client
	storage   *downstream.Client
	group     string
}

func NewNodeHandler(connector *downstream.Connector, catalog, storage *downstream.Client, defaultGroup string) *NodeHandler {
	return &NodeHandler{connector: connector, catalog: catalog, storage: storage, group: defaultGroup}
}

// NodeURLs returns the public URLs resolved at startup.
//
// @Summary      Resolved downstream URLs
// @Tags         node
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /api/front/node-urls [get]
func (h *NodeHandler) NodeURLs(c echo.Context) error {
	return c.JSON(http.StatusOK, h.connector.URLs())
}

// CatalogURL returns the catalog's public URL.
//
// @Summary      Catalog public URL
// @Tags         node
// @Produce      plain
// @Success      200  {string}  string
// @Router       /api/front/catalog-url [get]
func (h *NodeHandler) CatalogURL(c echo.Context) error {
	return c.String(http.StatusOK, h.connector.URL(downstream.ServiceCatalog))
}

// StorageURL returns the storage's public URL.
//
// @Summary      Storage public URL
// @Tags         node
// @Produce      plain
// @Success      200  {string}  string
// @Router       /api/front/storage-url [get]
func (h *NodeHandler) StorageURL(c echo.Context) error {
	return c.String(http.StatusOK, h.connector.URL(downstream.ServiceStorage))
}

// StorageToken returns a storage bearer token delegated to the current
// session's user.
//
// @Summary      Delegated storage token
// @Tags         node
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/front/storage-token [get]
func (h *NodeHandler) StorageToken(c echo.Context) error {
	sess := apimiddleware.SessionFromContext(c)
	if sess == nil || sess.User == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing session")
	}
	tok, err := h.storage.DelegatedToken(c.Request().Context(), sess.User, h.group)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"token": tok})
}

// ProxyCatalog relays the request to the catalog service with a
// per-call scoped credential.
//
// @Summary      Catalog pass-through
// @Tags         node
// @Router       /api/data/{path} [get]
func (h *NodeHandler) ProxyCatalog(c echo.Context) error {
	return h.proxy(c, h.catalog)
}

// ProxyStorage relays the request to the storage service with a
// per-call scoped credential.
//
// @Summary      Storage pass-through
// @Tags         node
// @Router       /api/media/{path} [get]
func (h *NodeHandler) ProxyStorage(c echo.Context) error {
	return h.proxy(c, h.storage)
}

func (h *NodeHandler) proxy(c echo.Context, client *downstream.Client) error {
	path := "/" + c.Param("*")
	if q := c.QueryString(); q != "" {
		path += "?" + q
	}
	body, status, err := client.Passthrough(c.Request().Context(), c.Request().Method, path, c.Request().Body)
	if err != nil {
		return err
	}
	return c.Blob(status, echo.MIMEApplicationJSON, body)
}
