package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/swdee/go-dartscore"
	"github.com/swdee/go-dartscore/emitter"
	"github.com/swdee/go-dartscore/inference"
	"github.com/swdee/go-dartscore/postprocess"
	"github.com/swdee/go-dartscore/preprocess"
	"github.com/swdee/go-dartscore/render"
	"gocv.io/x/gocv"
)

func main() {
	// disable logging timestamps
	log.SetFlags(0)

	// read in cli flags
	configFile := flag.String("c", "../data/dartscore.yaml", "YAML configuration file")
	dartWorker := flag.String("m", "../data/models/run_dart_worker.sh", "Executable running the dart and calibration YOLOv8 model")
	boardWorker := flag.String("b", "", "Optional executable running the board localization model, enables board cropping")
	inputSize := flag.Int("s", 640, "Model input width and height")
	labelFile := flag.String("l", "", "Text file containing model labels, defaults to the configured class names")
	source := flag.String("v", "0", "Camera device ID or video file to score")
	gameMode := flag.Int("g", -1, "Starting score for game mode, 0 for free play, -1 uses the config file")
	verbose := flag.Bool("d", false, "Enable debug logging")

	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := dartscore.LoadConfig(*configFile)

	if err != nil {
		log.Fatal("Error loading config: ", err)
	}

	if *gameMode >= 0 {
		cfg.GameMode = *gameMode
	}

	classNames := cfg.ClassNames

	if *labelFile != "" {
		classNames, err = dartscore.LoadLabels(*labelFile)

		if err != nil {
			log.Fatal("Error loading model labels: ", err)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// start the inference worker process for the dart model
	dartInf, err := inference.NewWorker(inference.Config{
		Command: *dartWorker,
		Args:    []string{"--size", strconv.Itoa(*inputSize)},
		Timeout: 2 * time.Second,
	}, logger)

	if err != nil {
		log.Fatal("Error creating inference worker: ", err)
	}

	if err := dartInf.Start(ctx); err != nil {
		log.Fatal("Error starting inference worker: ", err)
	}

	defer dartInf.Stop()

	detector := postprocess.NewDetector(dartInf,
		postprocess.NewYOLOv8(postprocess.YOLOv8DartParams(), classNames),
		*inputSize, *inputSize)

	opts := []dartscore.Option{
		dartscore.WithLogger(logger),
		dartscore.WithAnnotator(render.NewAnnotator(2)),
	}

	if *boardWorker != "" {
		boardInf, err := inference.NewWorker(inference.Config{
			Command: *boardWorker,
			Args:    []string{"--size", strconv.Itoa(*inputSize)},
		}, logger)

		if err != nil {
			log.Fatal("Error creating board worker: ", err)
		}

		if err := boardInf.Start(ctx); err != nil {
			log.Fatal("Error starting board worker: ", err)
		}

		defer boardInf.Stop()

		boardDet := postprocess.NewDetector(boardInf,
			postprocess.NewYOLOv8(postprocess.YOLOv8BoardParams(), []string{"board"}),
			*inputSize, *inputSize)

		opts = append(opts,
			dartscore.WithBoardLocator(postprocess.NewBoardLocator(boardDet)),
			dartscore.WithCropper(preprocess.NewBoardCropper(cfg.BoardSize).WithMargin(0.05)),
		)
	}

	// publish scores over MQTT when a broker is configured
	if cfg.MQTT.Broker != "" {
		mq := emitter.NewMQTTEmitter(cfg.MQTT, logger)

		if err := mq.Connect(ctx); err != nil {
			log.Printf("MQTT unavailable, continuing without publishing: %v\n", err)
		} else {
			defer mq.Disconnect()
			opts = append(opts, dartscore.WithPublisher(mq))
		}
	}

	session := dartscore.NewSession(cfg, detector, opts...)

	video, err := openSource(*source)

	if err != nil {
		log.Fatal("Error opening video source: ", err)
	}

	defer video.Close()

	frames := make(chan dartscore.Frame, 1)

	if err := session.Start(ctx, frames); err != nil {
		log.Fatal("Error starting session: ", err)
	}

	defer session.Stop()

	window := gocv.NewWindow("Dart Score")
	defer window.Close()

	img := gocv.NewMat()
	defer img.Close()

	status := "Waiting for darts"
	state := dartscore.StateIdle

	log.Printf("Scoring session %s, keys: [q]uit [s]top [r]estart [f]ree play [g]ame\n",
		session.ID())

	for ctx.Err() == nil {

		if ok := video.Read(&img); !ok || img.Empty() {
			log.Println("Video source ended")
			break
		}

		frame, err := img.ToImage()

		if err != nil {
			log.Printf("Failed to convert frame: %v\n", err)
			continue
		}

		// the session processes at most one frame per detection interval so
		// frames arriving while it is busy are skipped
		select {
		case frames <- dartscore.Frame{Image: frame, Time: time.Now()}:
		default:
		}

	drain:
		for {
			select {
			case u := <-session.Updates():
				if u.Text != "" {
					status = u.Text
				}
				state = u.State

				if u.Finalized {
					log.Printf("Throw: %s = %d\n", strings.Join(u.Labels, ", "), u.Total)
				}
			default:
				break drain
			}
		}

		render.StatusText(&img, fmt.Sprintf("%s\n[%s]", status, state), render.DefaultFont())

		window.IMShow(img)

		switch key := window.WaitKey(1); key {
		case 'q', 27:
			return
		case 's':
			session.Stop()
			status = "Stopped"
		case 'r':
			if err := session.Restart(ctx); err != nil {
				log.Printf("Restart failed: %v\n", err)
			}
		case 'f':
			session.SetFreePlay()
			status = "Free play"
		case 'g':
			start := cfg.GameMode
			if start <= 0 {
				start = 301
			}
			session.SetGameMode(start)
			status = fmt.Sprintf("Score: %d", start)
		}
	}

	log.Printf("Session finished, dropped updates=%d\n", session.DroppedUpdates())
}

// openSource opens a camera by device ID or a video file by path
func openSource(src string) (*gocv.VideoCapture, error) {

	if id, err := strconv.Atoi(src); err == nil {
		return gocv.OpenVideoCapture(id)
	}

	return gocv.VideoCaptureFile(src)
}
