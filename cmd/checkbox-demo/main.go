package main

import (
	"context"
	"flag"
	"os"
	"time"

	checkbox "github.com/avivitomchishen/checkbox-api"

	"github.com/ansel1/merry"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sethvargo/go-envconfig"
)

type envConfig struct {
	APIURL     string        `env:"CHECKBOX_API_URL"`
	LicenseKey string        `env:"CHECKBOX_LICENSE_KEY"`
	Login      string        `env:"CHECKBOX_LOGIN"`
	Password   string        `env:"CHECKBOX_PASSWORD"`
	Timeout    time.Duration `env:"CHECKBOX_TIMEOUT, default=25s"`
}

func run(productName string, price float64, byCard bool) error {
	var cfg envConfig
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		return merry.Wrap(err)
	}

	client, err := checkbox.New(
		checkbox.Config{
			APIURL:     cfg.APIURL,
			LicenseKey: cfg.LicenseKey,
			Timeout:    cfg.Timeout,
		},
		checkbox.Credentials{Login: cfg.Login, Password: cfg.Password},
	)
	if err != nil {
		return merry.Wrap(err)
	}

	ctx := context.Background()

	shift, err := client.OpenShift(ctx)
	if err != nil {
		return merry.Wrap(err)
	}
	log.Info().Str("shift_id", shift.ID).Msg("shift is open")

	paymentType := checkbox.PaymentCash
	if byCard {
		paymentType = checkbox.PaymentCashless
	}
	receipt, err := client.CreateReceipt(ctx, checkbox.ReceiptRequest{
		Kind: checkbox.ReceiptSale,
		Goods: []checkbox.GoodsItem{
			{Code: "demo-1", Name: productName, PriceKopecks: checkbox.Kopecks(price)},
		},
		Payment: checkbox.Payment{Type: paymentType, AmountKopecks: checkbox.Kopecks(price)},
	})
	if err != nil {
		return merry.Wrap(err)
	}
	log.Info().Str("receipt_id", receipt.ID).Int64("total_sum", receipt.TotalSum).Msg("receipt created")

	if _, err := client.CloseShift(ctx); err != nil {
		return merry.Wrap(err)
	}
	log.Info().Msg("shift is closed")
	return nil
}

func main() {
	var productName string
	var price float64
	var byCard bool
	flag.StringVar(&productName, "product", "Demo product", "product name on the receipt")
	flag.Float64Var(&price, "price", 1.00, "product price in currency units")
	flag.BoolVar(&byCard, "card", false, "pay by card instead of cash")
	flag.Parse()

	// Logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	zerolog.ErrorStackMarshaler = func(err error) interface{} { return merry.Details(err) }
	zerolog.ErrorStackFieldName = "message" //TODO: https://github.com/rs/zerolog/issues/157
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "2006-01-02 15:04:05.000"})

	if err := run(productName, price, byCard); err != nil {
		log.Fatal().Stack().Err(err).Msg("")
	}
}
