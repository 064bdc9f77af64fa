/*
go-dartscore scores darts thrown at a steel tip dartboard from camera frames.

A detection model supplies calibration markers and dart tips for each frame.
The markers are matched to fixed anchors on the board to compute an image to
board-plane homography, darts are tracked across frames by box overlap and
when a throw has settled the tracked darts are projected onto the board plane
and scored by segment and ring.

A Session owns the per camera state, the dart tracker, the calibration cache
and the count down Game, and advances through the throw lifecycle on every
frame it is given.  Detection, board cropping, annotation and publishing are
supplied by the caller, see the postprocess, preprocess, render and emitter
subpackages for implementations.  The inference subpackage runs the model in
an external worker process.

See example code and usage in the example subdirectory.
*/
package dartscore
