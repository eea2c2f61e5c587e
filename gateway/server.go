package gateway

import (
	"context"

	"github.com/0glabs/0g-wallet-rpc/common/api"
	"github.com/0glabs/0g-wallet-rpc/config"
	"github.com/0glabs/0g-wallet-rpc/provider"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// MustServe serves the REST gateway of chains until ctx done.
func MustServe(ctx context.Context, registry *provider.Registry, conf config.GatewayConfig) {
	if len(registry.Providers()) == 0 {
		logrus.Fatal("Chains not configured")
	}

	api.MustServe(ctx, conf.Endpoint, Routes(registry), api.RouterOption{
		OriginsAllowed: conf.OriginsAllowed,
	})
}

// Routes returns the route factory of gateway APIs.
func Routes(registry *provider.Registry) api.RouteFactory {
	controller := chainController{registry}

	return func(router *gin.Engine) {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
		router.GET("/chains", api.Wrap(controller.listChains))

		chainApi := router.Group("/:chain")
		chainApi.GET("/balance/:address", api.Wrap(controller.getBalance))
		chainApi.GET("/nonce/:address", api.Wrap(controller.getNonce))
		chainApi.GET("/gasPrice", api.Wrap(controller.getGasPrice))
		chainApi.GET("/blockNumber", api.Wrap(controller.getBlockNumber))
		chainApi.GET("/block/:number", api.Wrap(controller.getBlock))
		chainApi.GET("/receipt/:hash", api.Wrap(controller.getReceipt))
		chainApi.POST("/call", api.Wrap(controller.call))
		chainApi.POST("/gas", api.Wrap(controller.resolveGas))
		chainApi.POST("/logs", api.Wrap(controller.getLogs))
		chainApi.POST("/send", api.Wrap(controller.sendRawTransaction))
	}
}
